// Package storage places downloaded files on disk.
//
// Files are grouped as <output>/<category>/<entry>/<file>, where the entry
// name is sanitized into a single path component. Writes go through a
// temporary file in the destination directory and are renamed into place, so
// a file at its final path is always complete.
//
// Usage:
//
//	manager, err := storage.NewManager("downloads", config.NamingID)
//	if err != nil {
//		return err
//	}
//
//	dir := manager.EntryDir(storage.DirGeneral, "wolf -comic")
//	path := manager.PathFor(dir, post)
//	if !manager.Exists(path) {
//		err = manager.Save(path, body)
//	}
package storage
