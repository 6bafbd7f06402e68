package models

// Person is a member of the social graph, keyed by Name
type Person struct {
	Name  string `json:"name" yaml:"name"`
	City  string `json:"city" yaml:"city"`
	Hobby string `json:"hobby" yaml:"hobby"`
}

// Friendship is an undirected edge stored in canonical order (Left < Right)
type Friendship struct {
	Left  string `json:"left" yaml:"left"`
	Right string `json:"right" yaml:"right"`
}

// Canonical orders the endpoints of a friendship so that {a,b} and {b,a}
// resolve to the same stored edge.
func Canonical(a, b string) Friendship {
	if b < a {
		a, b = b, a
	}
	return Friendship{Left: a, Right: b}
}

// Attribute names a Person field that recommendations match on
type Attribute string

const (
	AttributeCity  Attribute = "city"
	AttributeHobby Attribute = "hobby"
)

// Valid reports whether a is a known attribute
func (a Attribute) Valid() bool {
	return a == AttributeCity || a == AttributeHobby
}

// Of returns the value of the attribute on p
func (a Attribute) Of(p Person) string {
	switch a {
	case AttributeCity:
		return p.City
	case AttributeHobby:
		return p.Hobby
	}
	return ""
}

// Stats holds aggregate counters over the graph
type Stats struct {
	TotalPeople             int     `json:"total_people"`
	TotalFriendships        int     `json:"total_friendships"`
	AverageFriendsPerPerson float64 `json:"average_friends_per_person"`
}

// NewStats computes the average as friendships per person. Each edge counts
// once, so the value is half the mean node degree.
func NewStats(people, friendships int) Stats {
	s := Stats{TotalPeople: people, TotalFriendships: friendships}
	if people > 0 {
		s.AverageFriendsPerPerson = float64(friendships) / float64(people)
	}
	return s
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FriendshipResult is returned by friendship mutations
type FriendshipResult struct {
	Person  string `json:"person"`
	Friend  string `json:"friend"`
	Created *bool  `json:"created,omitempty"`
	Deleted *int   `json:"deleted,omitempty"`
}
