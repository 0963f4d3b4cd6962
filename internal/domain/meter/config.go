package meter

// Config bounds the feed reads served to callers.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}
