package directory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seqIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// --- Fixtures ---

func person(id, name, city string, tags ...string) Profile {
	return Profile{
		ID:     id,
		Name:   name,
		Avatar: "https://example.com/" + id + ".jpg",
		Location: Location{
			Address:     "1 Main Street",
			City:        city,
			Country:     "USA",
			Coordinates: &Coordinates{Lat: 10, Lng: 20},
		},
		Tags: tags,
	}
}

func threePeople() []Profile {
	return []Profile{
		person("a", "Sarah Johnson", "San Francisco"),
		person("b", "Michael Chen", "Seattle"),
		person("c", "Emma Rodriguez", "New York"),
	}
}

func newTestDirectory(seed []Profile) (*Directory, *mockClock) {
	clock := &mockClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(seed, clock, seqIDs()), clock
}

func names(ps []Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

// --- Tests ---

func TestList_EmptyTermReturnsAllInOrder(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	got := names(d.List())
	want := []string{"Sarah Johnson", "Michael Chen", "Emma Rodriguez"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_SearchTermMatchesNameSubstring(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	d.SetSearchTerm("ch")

	got := names(d.List())
	want := []string{"Michael Chen"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_SearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	seed := threePeople()
	seed[0].Location.Country = "Canada"
	seed[2].Tags = []string{"Marketing"}
	d, _ := newTestDirectory(seed)

	cases := []struct {
		term string
		want []string
	}{
		{"SEATTLE", []string{"Michael Chen"}},
		{"canada", []string{"Sarah Johnson"}},
		{"MARKET", []string{"Emma Rodriguez"}},
		{"usa", []string{"Michael Chen", "Emma Rodriguez"}},
		{"nobody", []string{}},
	}
	for _, tc := range cases {
		d.SetSearchTerm(tc.term)
		got := names(d.List())
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("term %q: List() = %v, want %v", tc.term, got, tc.want)
		}
	}
}

func TestSetSearchTerm_StoredVerbatim(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	d.SetSearchTerm("  Chen ")
	if got := d.SearchTerm(); got != "  Chen " {
		t.Errorf("SearchTerm() = %q, want %q", got, "  Chen ")
	}
	// No trimming: the padded term matches nothing.
	if got := d.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", names(got))
	}
}

func TestSearch_AdminModeIgnoresTags(t *testing.T) {
	seed := threePeople()
	seed[1].Tags = []string{"Design"}
	d, _ := newTestDirectory(seed)

	if got := d.Search(Query{Term: "design"}); len(got) != 1 {
		t.Fatalf("Search(design) returned %d, want 1", len(got))
	}
	if got := d.Search(Query{Term: "design", AdminMode: true}); len(got) != 0 {
		t.Errorf("admin Search(design) = %v, want empty", names(got))
	}
	if d.SearchTerm() != "" {
		t.Error("Search must not change the session search term")
	}
}

func TestTagFilter_IsConjunctive(t *testing.T) {
	d, _ := newTestDirectory([]Profile{
		person("a", "A", "X", "Go", "Rust"),
		person("b", "B", "Y", "Go"),
		person("c", "C", "Z", "Rust"),
	})

	d.ToggleTag("go")
	if got := names(d.List()); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("filter [go] = %v", got)
	}

	d.ToggleTag("Rust")
	if got := names(d.List()); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("filter [go rust] = %v", got)
	}

	d.ToggleTag("GO")
	if got := d.TagFilter(); !reflect.DeepEqual(got, []string{"Rust"}) {
		t.Errorf("TagFilter() after toggling go off = %v", got)
	}

	d.ClearTagFilter()
	if got := d.List(); len(got) != 3 {
		t.Errorf("after ClearTagFilter List() has %d, want 3", len(got))
	}
}

func TestLocationFilter_MatchesState(t *testing.T) {
	seed := threePeople()
	seed[0].Location.State = "CA"
	d, _ := newTestDirectory(seed)

	d.SetLocationFilter("ca")
	if got := names(d.List()); !reflect.DeepEqual(got, []string{"Sarah Johnson"}) {
		t.Errorf("location filter ca = %v", got)
	}
}

func TestTags_SortedAndUnique(t *testing.T) {
	d, _ := newTestDirectory([]Profile{
		person("a", "A", "X", "Go", "AI"),
		person("b", "B", "Y", "Go", "Design"),
	})

	want := []string{"AI", "Design", "Go"}
	if got := d.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
}

func TestTags_CaseVariantsListedOnce(t *testing.T) {
	d, _ := newTestDirectory([]Profile{
		person("a", "A", "X", "Go", "AI"),
		person("b", "B", "Y", "go"),
		person("c", "C", "Z", "GO", "ai"),
	})

	want := []string{"AI", "Go"}
	if got := d.Tags(); !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}

	// Either spelling selects every case variant.
	for _, tag := range []string{"Go", "go"} {
		got := names(d.Search(Query{Tags: []string{tag}}))
		if want := []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Search(tag %q) = %v, want %v", tag, got, want)
		}
	}
}

func TestAdd_Valid(t *testing.T) {
	d, clock := newTestDirectory(threePeople())

	in := person("caller-id", "New Person", "Austin", "Go")
	got, err := d.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if got.ID == "caller-id" || got.ID == "" {
		t.Errorf("ID = %q, want a freshly assigned id", got.ID)
	}
	if d.Len() != 4 {
		t.Errorf("Len() = %d, want 4", d.Len())
	}
	if !got.CreatedAt.Equal(clock.Now()) || !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, clock.Now())
	}

	all := d.List()
	if last := all[len(all)-1]; last.ID != got.ID {
		t.Errorf("last listed id = %q, want %q", last.ID, got.ID)
	}
}

func TestAdd_IDsAreUnique(t *testing.T) {
	d, _ := newTestDirectory(nil)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		p, err := d.Add(person("same", "P", "X"))
		if err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestAdd_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *Profile)
		field  string
	}{
		{"missing name", func(p *Profile) { p.Name = "" }, "name"},
		{"blank name", func(p *Profile) { p.Name = "   " }, "name"},
		{"missing avatar", func(p *Profile) { p.Avatar = "" }, "avatar"},
		{"missing address", func(p *Profile) { p.Location.Address = "" }, "location.address"},
		{"missing city", func(p *Profile) { p.Location.City = "" }, "location.city"},
		{"missing country", func(p *Profile) { p.Location.Country = "" }, "location.country"},
		{"missing coordinates", func(p *Profile) { p.Location.Coordinates = nil }, "location.coordinates"},
		{"lat out of range", func(p *Profile) { p.Location.Coordinates.Lat = 91 }, "location.coordinates.lat"},
		{"duplicate tags", func(p *Profile) { p.Tags = []string{"Go", "Go"} }, "tags"},
		{"name reported first", func(p *Profile) { p.Name = ""; p.Location.Coordinates = nil }, "name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newTestDirectory(threePeople())
			p := person("x", "Valid", "Austin")
			tc.mutate(&p)

			_, err := d.Add(p)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Add error = %v, want *ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("Field = %q, want %q", ve.Field, tc.field)
			}
			if d.Len() != 3 {
				t.Errorf("Len() = %d, want 3 (unchanged)", d.Len())
			}
		})
	}
}

func TestUpdate_MissingID(t *testing.T) {
	d, _ := newTestDirectory(threePeople())
	before := d.All()

	name := "X"
	_, err := d.Update("missing-id", Patch{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing-id" {
		t.Errorf("NotFoundError = %+v", nf)
	}
	if after := d.All(); !reflect.DeepEqual(before, after) {
		t.Error("collection changed after failed update")
	}
}

func TestUpdate_ChangesOnlyNameAndUpdatedAt(t *testing.T) {
	d, clock := newTestDirectory(threePeople())
	before := d.All()

	clock.Advance(time.Hour)
	name := "New Name"
	got, err := d.Update("b", Patch{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := before[1]
	want.Name = "New Name"
	want.UpdatedAt = clock.Now()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Update() = %+v, want %+v", got, want)
	}

	after := d.All()
	if !reflect.DeepEqual(after[0], before[0]) || !reflect.DeepEqual(after[2], before[2]) {
		t.Error("other records changed")
	}
}

func TestUpdate_ReplacesNestedObjectsWholesale(t *testing.T) {
	seed := threePeople()
	seed[0].Location.State = "CA"
	seed[0].SocialMedia = map[string]string{"twitter": "@a", "github": "a"}
	d, _ := newTestDirectory(seed)

	got, err := d.Update("a", Patch{
		Location:    &Location{City: "Paris", Country: "France"},
		SocialMedia: map[string]string{"github": "b"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Location.State != "" || got.Location.Coordinates != nil || got.Location.Address != "" {
		t.Errorf("Location was merged, want replaced: %+v", got.Location)
	}
	if !reflect.DeepEqual(got.SocialMedia, map[string]string{"github": "b"}) {
		t.Errorf("SocialMedia = %v, want replaced", got.SocialMedia)
	}
}

func TestUpdate_SelectedReflectsMerge(t *testing.T) {
	d, _ := newTestDirectory(threePeople())
	d.Select("c")

	name := "Emma R."
	if _, err := d.Update("c", Patch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	sel, ok := d.Selected()
	if !ok || sel.Name != "Emma R." {
		t.Errorf("Selected() = %q, %v; want Emma R.", sel.Name, ok)
	}
}

func TestRemove(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	d.Remove("b")
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	for _, p := range d.List() {
		if p.ID == "b" {
			t.Error("removed profile still listed")
		}
	}

	d.Remove("nonexistent")
	if d.Len() != 2 {
		t.Errorf("Len() after removing unknown id = %d, want 2", d.Len())
	}
}

func TestSelect(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	d.Select("a")
	if p, ok := d.Selected(); !ok || p.ID != "a" {
		t.Fatalf("Selected() = %q, %v", p.ID, ok)
	}

	d.Select("")
	if _, ok := d.Selected(); ok {
		t.Error("Select(\"\") should clear the selection")
	}

	d.Select("a")
	d.Select("unknown")
	if _, ok := d.Selected(); ok {
		t.Error("selecting an unknown id should clear the selection")
	}
}

func TestSelect_RemovedProfileClearsSelection(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	d.Select("a")
	d.Remove("a")
	if _, ok := d.Selected(); ok {
		t.Error("selection should be cleared after removing the selected profile")
	}
	if d.Session().SelectedID != "" {
		t.Error("session still references removed profile")
	}

	d.Select("a")
	if _, ok := d.Selected(); ok {
		t.Error("selecting a removed id should yield no selection")
	}
}

func TestReturnedProfilesAreCopies(t *testing.T) {
	d, _ := newTestDirectory(threePeople())

	list := d.List()
	list[0].Name = "mutated"
	list[0].Location.Coordinates.Lat = 0

	p, err := d.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name != "Sarah Johnson" || p.Location.Coordinates.Lat != 10 {
		t.Error("caller mutation leaked into directory state")
	}
}

func TestMarkers(t *testing.T) {
	d, _ := newTestDirectory(threePeople())
	d.Select("b")
	d.SetSearchTerm("s")

	markers := d.Markers()
	if len(markers) != 3 {
		t.Fatalf("len(Markers()) = %d, want 3", len(markers))
	}
	for _, m := range markers {
		if m.Selected != (m.ID == "b") {
			t.Errorf("marker %s selected = %v", m.ID, m.Selected)
		}
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingNotifier) Notify(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func TestNotifiers_ReceiveChanges(t *testing.T) {
	d, _ := newTestDirectory(threePeople())
	rec := &recordingNotifier{}
	d.Subscribe(rec)

	added, err := d.Add(person("", "New", "X"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	name := "Renamed"
	d.Update(added.ID, Patch{Name: &name})
	d.Remove(added.ID)
	d.Remove(added.ID) // no-op, no change

	kinds := make([]ChangeKind, len(rec.changes))
	for i, c := range rec.changes {
		kinds[i] = c.Kind
	}
	want := []ChangeKind{ChangeAdded, ChangeUpdated, ChangeRemoved}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("change kinds = %v, want %v", kinds, want)
	}
	if rec.changes[2].Profile.Name != "Renamed" {
		t.Errorf("removed profile = %q, want Renamed", rec.changes[2].Profile.Name)
	}
}

// holdFirst blocks inside the first Notify call until release is closed.
type holdFirst struct {
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func newHoldFirst() *holdFirst {
	return &holdFirst{held: make(chan struct{}), release: make(chan struct{})}
}

func (h *holdFirst) Notify(Change) {
	first := false
	h.once.Do(func() { first = true })
	if first {
		close(h.held)
		<-h.release
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNotifiers_DeliverInMutationOrder(t *testing.T) {
	d, _ := newTestDirectory(threePeople())
	gate := newHoldFirst()
	rec := &recordingNotifier{}
	d.Subscribe(gate)
	d.Subscribe(rec)

	name := "Renamed"
	updated := make(chan struct{})
	go func() {
		defer close(updated)
		d.Update("a", Patch{Name: &name})
	}()
	<-gate.held

	removed := make(chan struct{})
	go func() {
		defer close(removed)
		d.Remove("a")
	}()

	// The removal is applied in memory right away; its notification waits.
	waitUntil(t, func() bool { return d.Len() == 2 })
	select {
	case <-removed:
		t.Fatal("Remove notified while an earlier Update was still being delivered")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate.release)
	<-updated
	<-removed

	kinds := make([]ChangeKind, len(rec.changes))
	for i, c := range rec.changes {
		kinds[i] = c.Kind
	}
	want := []ChangeKind{ChangeUpdated, ChangeRemoved}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("change kinds = %v, want %v", kinds, want)
	}
}

func TestNotifiers_ReplayMatchesDirectory(t *testing.T) {
	d, _ := newTestDirectory(SeedProfiles())

	var mu sync.Mutex
	replica := make(map[string]string)
	for _, p := range d.All() {
		replica[p.ID] = p.Name
	}
	d.Subscribe(NotifierFunc(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if c.Kind == ChangeRemoved {
			delete(replica, c.Profile.ID)
			return
		}
		replica[c.Profile.ID] = c.Profile.Name
	}))

	// Writers race updates and removals on the same ids.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
				if (i+len(id))%3 == 0 {
					d.Remove(id)
					continue
				}
				name := fmt.Sprintf("W%d", i)
				d.Update(id, Patch{Name: &name})
			}
		}(i)
	}
	wg.Wait()

	want := make(map[string]string)
	for _, p := range d.All() {
		want[p.ID] = p.Name
	}
	if !reflect.DeepEqual(replica, want) {
		t.Errorf("replayed changes = %v, directory = %v", replica, want)
	}
}

type failingSource struct{}

func (failingSource) LoadProfiles(context.Context) ([]Profile, error) {
	return nil, errors.New("backend down")
}

func TestLoad(t *testing.T) {
	d, _ := newTestDirectory(nil)
	if d.Status().State != StateIdle {
		t.Errorf("initial state = %q, want idle", d.Status().State)
	}

	if err := d.Load(context.Background(), StaticSource(SeedProfiles())); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st := d.Status()
	if st.State != StateLoaded || st.Count != 6 {
		t.Errorf("Status() = %+v, want loaded/6", st)
	}

	if err := d.Load(context.Background(), failingSource{}); err == nil {
		t.Fatal("expected error from failing source")
	}
	st = d.Status()
	if st.State != StateFailed || st.Error == "" {
		t.Errorf("Status() = %+v, want failed with error", st)
	}
	if d.Len() != 6 {
		t.Errorf("Len() = %d, want previous collection kept", d.Len())
	}
}

func TestNew_DropsDuplicateSeedIDs(t *testing.T) {
	d, _ := newTestDirectory([]Profile{
		person("a", "First", "X"),
		person("a", "Second", "Y"),
	})
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if p, _ := d.Get("a"); p.Name != "First" {
		t.Errorf("kept %q, want First", p.Name)
	}
}

func TestConcurrentAccess(t *testing.T) {
	d, _ := newTestDirectory(SeedProfiles())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := d.Add(person("", fmt.Sprintf("P%d", i), "X"))
			if err != nil {
				t.Errorf("Add: %v", err)
				return
			}
			d.SetSearchTerm("p")
			d.List()
			d.Select(p.ID)
			d.Remove(p.ID)
		}(i)
	}
	wg.Wait()

	if d.Len() != 6 {
		t.Errorf("Len() = %d, want 6", d.Len())
	}
}
