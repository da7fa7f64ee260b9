package directory

import "time"

// Profile is one directory entry: a person with contact details, a geocoded
// location and free-text tags.
type Profile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Avatar      string            `json:"avatar"`
	Description string            `json:"description,omitempty"`
	DetailedBio string            `json:"detailedBio,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	Company     string            `json:"company,omitempty"`
	Position    string            `json:"position,omitempty"`
	Location    Location          `json:"location"`
	Tags        []string          `json:"tags"`
	SocialMedia map[string]string `json:"socialMedia,omitempty"` // network → handle
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Location is a postal address plus the coordinates used for map placement.
type Location struct {
	Address     string       `json:"address"`
	City        string       `json:"city"`
	State       string       `json:"state,omitempty"`
	Country     string       `json:"country"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Coordinates *Coordinates `json:"coordinates"`
}

// Coordinates are WGS84 degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Patch is a partial profile for Update. Nil fields are left untouched.
// Location and SocialMedia replace the stored value wholesale when present.
// A non-nil empty Tags slice clears the tags.
type Patch struct {
	Name        *string           `json:"name,omitempty"`
	Avatar      *string           `json:"avatar,omitempty"`
	Description *string           `json:"description,omitempty"`
	DetailedBio *string           `json:"detailedBio,omitempty"`
	Email       *string           `json:"email,omitempty"`
	Phone       *string           `json:"phone,omitempty"`
	Website     *string           `json:"website,omitempty"`
	Company     *string           `json:"company,omitempty"`
	Position    *string           `json:"position,omitempty"`
	Location    *Location         `json:"location,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	SocialMedia map[string]string `json:"socialMedia,omitempty"`
}

// Query is an explicit, stateless search over the directory.
type Query struct {
	Term     string
	Tags     []string
	Location string
	// AdminMode restricts free-text matching to name, city and country.
	AdminMode bool
}

// Marker places a listed profile on a map.
type Marker struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Selected bool    `json:"selected"`
}

// Session is a snapshot of the per-session view state.
type Session struct {
	SearchTerm string   `json:"searchTerm"`
	Tags       []string `json:"tags"`
	Location   string   `json:"location"`
	SelectedID string   `json:"selectedId,omitempty"`
}

// LoadState tracks where the collection came from.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLoaded  LoadState = "loaded"
	StateFailed  LoadState = "failed"
)

// Status reports the outcome of the last Load.
type Status struct {
	State LoadState `json:"state"`
	Error string    `json:"error,omitempty"`
	Count int       `json:"count"`
}

// ChangeKind names a directory mutation.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "deleted"
)

// Change describes a successful mutation. For removals Profile holds the
// record as it was before deletion.
type Change struct {
	Kind    ChangeKind
	Profile Profile
	At      time.Time
}
