package models

// Breed is an entry of the breed catalog that listings point at.
type Breed struct {
	Base       `bson:",inline"`
	Timestamps `bson:",inline"`
	Name       string `bson:"name" json:"name"`
	NameKey    string `bson:"name_key" json:"-"` // lower-cased name, unique
}

// BreedPage is one page of the admin breed list.
type BreedPage struct {
	Items []Breed `json:"items"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Pages int64   `json:"pages"`
}
