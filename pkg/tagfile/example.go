package tagfile

// ExampleFile is written by "e621dl init" when no tag file exists yet.
const ExampleFile = `# e621dl tag file
#
# One entry per line. Lines starting with # are comments.
# Prefix a tag with - to exclude it, e.g. "wolf -comic".
# Lines before the first [section] are treated as tag searches.

[artists]
# Artists are always downloaded in full.

[general]
# General tags are capped at 1280 posts. Character tags with 1500 or
# fewer posts are downloaded in full.

[pools]
# Pool ids, one per line.

[sets]
# Set ids, one per line.

[single-post]
# Individual post ids, one per line.
`
