package e621

// Post is a post record as returned by /posts.json and /posts/<id>.json
type Post struct {
	ID         int    `json:"id"`
	CreatedAt  string `json:"created_at"`
	File       File   `json:"file"`
	Score      Score  `json:"score"`
	Tags       Tags   `json:"tags"`
	Flags      Flags  `json:"flags"`
	Rating     string `json:"rating"` // s, q or e
	FavCount   int    `json:"fav_count"`
	Pools      []int  `json:"pools"`
	UploaderID int    `json:"uploader_id"`
}

// File describes the media file of a post
type File struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ext    string `json:"ext"`
	Size   int64  `json:"size"`
	MD5    string `json:"md5"`
	// URL is null when the post is deleted or hidden from anonymous users
	URL *string `json:"url"`
}

type Score struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// Tags groups a post's tags by category
type Tags struct {
	General   []string `json:"general"`
	Species   []string `json:"species"`
	Character []string `json:"character"`
	Copyright []string `json:"copyright"`
	Artist    []string `json:"artist"`
	Invalid   []string `json:"invalid"`
	Lore      []string `json:"lore"`
	Meta      []string `json:"meta"`
}

// All returns every tag of the post regardless of category
func (t Tags) All() []string {
	groups := [][]string{t.General, t.Species, t.Character, t.Copyright, t.Artist, t.Invalid, t.Lore, t.Meta}
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	all := make([]string, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

type Flags struct {
	Pending bool `json:"pending"`
	Flagged bool `json:"flagged"`
	Deleted bool `json:"deleted"`
}

// FileURL returns the media URL, or "" if none was provided
func (p Post) FileURL() string {
	if p.File.URL == nil {
		return ""
	}
	return *p.File.URL
}

// Downloadable reports whether the post has a live file that can be fetched
func (p Post) Downloadable() bool {
	return !p.Flags.Deleted && p.FileURL() != ""
}

// PostsResponse wraps /posts.json
type PostsResponse struct {
	Posts []Post `json:"posts"`
}

// PostResponse wraps /posts/<id>.json
type PostResponse struct {
	Post Post `json:"post"`
}

// Tag is an entry from /tags.json
type Tag struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	PostCount int    `json:"post_count"`
	Category  int    `json:"category"`
	IsLocked  bool   `json:"is_locked"`
}

// Alias is an entry from /tag_aliases.json
type Alias struct {
	ID             int    `json:"id"`
	AntecedentName string `json:"antecedent_name"`
	ConsequentName string `json:"consequent_name"`
	Status         string `json:"status"`
	PostCount      int    `json:"post_count"`
}

// Pool is returned by /pools/<id>.json
type Pool struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Category    string `json:"category"`
	PostIDs     []int  `json:"post_ids"`
	PostCount   int    `json:"post_count"`
}

// PostSet is returned by /post_sets/<id>.json
type PostSet struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
	PostCount int    `json:"post_count"`
	PostIDs   []int  `json:"post_ids"`
}

// User is returned by /users/<name>.json. BlacklistedTags is only present
// when requesting one's own account with credentials.
type User struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	FavoriteCount   int    `json:"favorite_count"`
	BlacklistedTags string `json:"blacklisted_tags"`
}
