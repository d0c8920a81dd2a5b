package repo

// Unit describes the organization a repository belongs to.
type Unit struct {
	Name string `msgpack:"name" yaml:"name"`
	ID   string `msgpack:"id,omitempty" yaml:"id,omitempty"`
}
