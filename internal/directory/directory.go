package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Source supplies the initial collection of profiles.
// Implemented by StaticSource and storage.Store.
type Source interface {
	LoadProfiles(ctx context.Context) ([]Profile, error)
}

// StaticSource serves a fixed list of profiles.
type StaticSource []Profile

func (s StaticSource) LoadProfiles(context.Context) ([]Profile, error) {
	out := make([]Profile, len(s))
	for i := range s {
		out[i] = copyProfile(&s[i])
	}
	return out, nil
}

// Notifier receives every successful mutation, after the directory lock has
// been released. Changes are delivered one at a time in mutation order. A
// Notifier may read the Directory but must not mutate it.
type Notifier interface {
	Notify(Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Change)

func (f NotifierFunc) Notify(c Change) { f(c) }

// Directory holds the profile collection together with the view state of
// one session: search term, tag and location filters, and the selection.
type Directory struct {
	clock  Clock
	newID  func() string
	logger *slog.Logger

	mu             sync.RWMutex
	profiles       []Profile
	searchTerm     string
	tagFilter      []string
	locationFilter string
	selected       string
	status         Status
	notifiers      []Notifier
	nextSeq        uint64

	// emitMu guards emitted; emitTurn wakes mutations waiting to notify.
	emitMu   sync.Mutex
	emitTurn *sync.Cond
	emitted  uint64
}

// New creates a Directory seeded with the given profiles. Seed profiles keep
// their ids; later duplicates of an id are dropped.
func New(seed []Profile) *Directory {
	return NewWithClock(seed, realClock{}, uuid.NewString)
}

// NewWithClock creates a Directory with a custom clock and id generator (for
// testing).
func NewWithClock(seed []Profile, clock Clock, newID func() string) *Directory {
	d := &Directory{
		clock:  clock,
		newID:  newID,
		logger: slog.Default(),
		status: Status{State: StateIdle},
	}
	d.emitTurn = sync.NewCond(&d.emitMu)
	if seed != nil {
		d.profiles = d.dedupe(seed)
		d.status = Status{State: StateLoaded, Count: len(d.profiles)}
	}
	return d
}

// Subscribe registers n to receive future changes.
func (d *Directory) Subscribe(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Load replaces the collection with the profiles returned by src and resets
// the session state. On failure the previous collection is kept and the
// status records the error.
func (d *Directory) Load(ctx context.Context, src Source) error {
	d.mu.Lock()
	d.status = Status{State: StateLoading, Count: len(d.profiles)}
	d.mu.Unlock()

	loaded, err := src.LoadProfiles(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.status = Status{State: StateFailed, Error: err.Error(), Count: len(d.profiles)}
		return fmt.Errorf("loading profiles: %w", err)
	}
	d.profiles = d.dedupe(loaded)
	d.searchTerm = ""
	d.tagFilter = nil
	d.locationFilter = ""
	d.selected = ""
	d.status = Status{State: StateLoaded, Count: len(d.profiles)}
	return nil
}

// Status reports the outcome of the last Load.
func (d *Directory) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Directory) dedupe(in []Profile) []Profile {
	out := make([]Profile, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i := range in {
		if seen[in[i].ID] {
			d.logger.Warn("duplicate profile id, skipping", "id", in[i].ID)
			continue
		}
		seen[in[i].ID] = true
		out = append(out, copyProfile(&in[i]))
	}
	return out
}

// --- Reads ---

// List returns the profiles matching the session's search term, tag filter
// and location filter, in insertion order.
func (d *Directory) List() []Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filterLocked(Query{
		Term:     d.searchTerm,
		Tags:     d.tagFilter,
		Location: d.locationFilter,
	})
}

// Search applies q to the collection without touching session state.
func (d *Directory) Search(q Query) []Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filterLocked(q)
}

func (d *Directory) filterLocked(q Query) []Profile {
	out := make([]Profile, 0, len(d.profiles))
	for i := range d.profiles {
		if matches(&d.profiles[i], q) {
			out = append(out, copyProfile(&d.profiles[i]))
		}
	}
	return out
}

// All returns every profile, unfiltered, in insertion order.
func (d *Directory) All() []Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filterLocked(Query{})
}

// Len returns the collection size.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.profiles)
}

// Get returns the profile with the given id.
func (d *Directory) Get(id string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.indexLocked(id)
	if i < 0 {
		return Profile{}, &NotFoundError{ID: id}
	}
	return copyProfile(&d.profiles[i]), nil
}

// Tags returns the sorted set of tags used across all profiles. Tags that
// differ only in case are listed once, spelled as in the first profile that
// uses them, since tag filtering ignores case.
func (d *Directory) Tags() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[string]bool)
	tags := []string{}
	for i := range d.profiles {
		for _, t := range d.profiles[i].Tags {
			key := strings.ToLower(t)
			if !seen[key] {
				seen[key] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// Markers returns map placement data for the currently listed profiles.
func (d *Directory) Markers() []Marker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	listed := d.filterLocked(Query{
		Term:     d.searchTerm,
		Tags:     d.tagFilter,
		Location: d.locationFilter,
	})
	markers := make([]Marker, 0, len(listed))
	for _, p := range listed {
		if p.Location.Coordinates == nil {
			continue
		}
		markers = append(markers, Marker{
			ID:       p.ID,
			Name:     p.Name,
			Lat:      p.Location.Coordinates.Lat,
			Lng:      p.Location.Coordinates.Lng,
			Selected: p.ID == d.selected,
		})
	}
	return markers
}

func (d *Directory) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range d.profiles {
		if d.profiles[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Session state ---

// SetSearchTerm stores term verbatim.
func (d *Directory) SetSearchTerm(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchTerm = term
}

// SearchTerm returns the current search term.
func (d *Directory) SearchTerm() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.searchTerm
}

// ToggleTag adds tag to the tag filter, or removes it if already present.
func (d *Directory) ToggleTag(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.tagFilter {
		if strings.EqualFold(t, tag) {
			d.tagFilter = append(d.tagFilter[:i:i], d.tagFilter[i+1:]...)
			return
		}
	}
	d.tagFilter = append(d.tagFilter, tag)
}

// SetTagFilter replaces the tag filter.
func (d *Directory) SetTagFilter(tags []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tagFilter = normalizeTags(tags)
}

// ClearTagFilter empties the tag filter.
func (d *Directory) ClearTagFilter() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tagFilter = nil
}

// TagFilter returns the selected tags.
func (d *Directory) TagFilter() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string{}, d.tagFilter...)
}

// SetLocationFilter stores a free-text filter over city, state and country.
func (d *Directory) SetLocationFilter(loc string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locationFilter = loc
}

// LocationFilter returns the current location filter.
func (d *Directory) LocationFilter() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.locationFilter
}

// Select marks the profile with id as selected. An empty or unknown id
// clears the selection.
func (d *Directory) Select(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexLocked(id) < 0 {
		d.selected = ""
		return
	}
	d.selected = id
}

// Selected resolves the selection against the current collection.
func (d *Directory) Selected() (Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i := d.indexLocked(d.selected)
	if i < 0 {
		return Profile{}, false
	}
	return copyProfile(&d.profiles[i]), true
}

// Session returns a snapshot of the view state.
func (d *Directory) Session() Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Session{
		SearchTerm: d.searchTerm,
		Tags:       append([]string{}, d.tagFilter...),
		Location:   d.locationFilter,
		SelectedID: d.selected,
	}
}

// --- Mutations ---

// Add validates p, assigns it a fresh id (any caller-supplied id is
// overwritten), stamps both timestamps and appends it.
func (d *Directory) Add(p Profile) (Profile, error) {
	if err := Validate(p); err != nil {
		return Profile{}, err
	}

	now := d.clock.Now()
	stored := copyProfile(&p)
	stored.ID = d.newID()
	stored.Tags = normalizeTags(p.Tags)
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	d.mu.Lock()
	for d.indexLocked(stored.ID) >= 0 {
		stored.ID = d.newID()
	}
	d.profiles = append(d.profiles, stored)
	out := copyProfile(&stored)
	pending := d.changeLocked(ChangeAdded, out)
	d.mu.Unlock()

	d.emit(pending)
	return out, nil
}

// Update shallow-merges patch onto the profile with id and refreshes
// UpdatedAt.
func (d *Directory) Update(id string, patch Patch) (Profile, error) {
	d.mu.Lock()
	i := d.indexLocked(id)
	if i < 0 {
		d.mu.Unlock()
		return Profile{}, &NotFoundError{ID: id}
	}
	merged := applyPatch(copyProfile(&d.profiles[i]), patch)
	merged.UpdatedAt = d.clock.Now()
	d.profiles[i] = merged
	out := copyProfile(&merged)
	pending := d.changeLocked(ChangeUpdated, out)
	d.mu.Unlock()

	d.emit(pending)
	return out, nil
}

// Remove deletes the profile with id. Unknown ids are ignored.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	i := d.indexLocked(id)
	if i < 0 {
		d.mu.Unlock()
		return
	}
	removed := d.profiles[i]
	d.profiles = append(d.profiles[:i:i], d.profiles[i+1:]...)
	if d.selected == id {
		d.selected = ""
	}
	pending := d.changeLocked(ChangeRemoved, removed)
	d.mu.Unlock()

	d.emit(pending)
}

// pendingChange is a change waiting for its turn to be delivered.
type pendingChange struct {
	seq       uint64
	change    Change
	notifiers []Notifier
}

// changeLocked stamps a change with the next delivery sequence number. d.mu
// must be held.
func (d *Directory) changeLocked(kind ChangeKind, p Profile) pendingChange {
	seq := d.nextSeq
	d.nextSeq++
	return pendingChange{
		seq:       seq,
		change:    Change{Kind: kind, Profile: p, At: d.clock.Now()},
		notifiers: d.notifiers,
	}
}

// emit waits until every earlier change has been delivered, then runs the
// notifiers for this one.
func (d *Directory) emit(pc pendingChange) {
	d.emitMu.Lock()
	for d.emitted != pc.seq {
		d.emitTurn.Wait()
	}
	d.emitMu.Unlock()

	defer func() {
		d.emitMu.Lock()
		d.emitted++
		d.emitMu.Unlock()
		d.emitTurn.Broadcast()
	}()
	for _, n := range pc.notifiers {
		n.Notify(pc.change)
	}
}

func applyPatch(p Profile, patch Patch) Profile {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&p.Name, patch.Name)
	setString(&p.Avatar, patch.Avatar)
	setString(&p.Description, patch.Description)
	setString(&p.DetailedBio, patch.DetailedBio)
	setString(&p.Email, patch.Email)
	setString(&p.Phone, patch.Phone)
	setString(&p.Website, patch.Website)
	setString(&p.Company, patch.Company)
	setString(&p.Position, patch.Position)

	if patch.Location != nil {
		p.Location = copyLocation(*patch.Location)
	}
	if patch.Tags != nil {
		p.Tags = normalizeTags(patch.Tags)
	}
	if patch.SocialMedia != nil {
		p.SocialMedia = copyMap(patch.SocialMedia)
	}
	return p
}

func copyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p
	cp.Location = copyLocation(p.Location)
	if p.Tags != nil {
		cp.Tags = make([]string, len(p.Tags))
		copy(cp.Tags, p.Tags)
	}
	cp.SocialMedia = copyMap(p.SocialMedia)
	return cp
}

func copyLocation(l Location) Location {
	if l.Coordinates != nil {
		c := *l.Coordinates
		l.Coordinates = &c
	}
	return l
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
