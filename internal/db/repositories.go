package db

// Repositories groups the project and segment stores over one connection
type Repositories struct {
	db *DB

	Projects *ProjectRepository
	Segments *SegmentRepository
}

// NewRepositories creates the repositories backed by db
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		db:       db,
		Projects: NewProjectRepository(db),
		Segments: NewSegmentRepository(db),
	}
}
