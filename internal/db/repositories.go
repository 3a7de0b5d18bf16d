package db

// Repositories provides access to all database repositories
type Repositories struct {
	Channels *ChannelRepository
	Media    *MediaRepository
	Lineup   *LineupRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Channels: NewChannelRepository(db),
		Media:    NewMediaRepository(db),
		Lineup:   NewLineupRepository(db),
	}
}
