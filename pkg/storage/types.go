package storage

// User is the stored user record as far as authorization needs it.
// Credential hashes live outside this module and are never loaded here.
type User struct {
	ID       string   `yaml:"id"`
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Roles    []string `yaml:"roles"`
}

// Tutorial is the ownership-relevant part of a tutorial record.
type Tutorial struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	AuthorID string `yaml:"author_id"`
}
