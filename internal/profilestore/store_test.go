package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/testutil"
)

// memStorage is an in-memory Source and Sink holding raw JSON per id.
type memStorage struct {
	mu      sync.Mutex
	raw     map[int32][]byte
	readErr map[int32]error
	writes  []int32
}

func newMemStorage() *memStorage {
	return &memStorage{raw: map[int32][]byte{}, readErr: map[int32]error{}}
}

func (m *memStorage) ReadProfile(ctx context.Context, id int32) (*seam.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[id]; err != nil {
		return nil, err
	}
	data, ok := m.raw[id]
	if !ok {
		return nil, fmt.Errorf("profile %d: %w", id, seam.ErrNotStored)
	}
	return seam.DecodeDocument(data)
}

func (m *memStorage) WriteProfile(ctx context.Context, doc seam.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[doc.ID] = data
	m.writes = append(m.writes, doc.ID)
	return nil
}

// put stores a profile whose every register holds fill.
func (m *memStorage) put(t *testing.T, id int32, fill int32) {
	t.Helper()
	data, err := json.Marshal(testutil.FilledDocument(id, fill))
	require.NoError(t, err)
	m.mu.Lock()
	m.raw[id] = data
	m.mu.Unlock()
}

func regInt(t *testing.T, p *seam.Profile, i int) int32 {
	t.Helper()
	v, err := p.Table().Int(i)
	require.NoError(t, err)
	return v
}

func TestStoreStartsEmpty(t *testing.T) {
	s := New(newMemStorage())
	assert.Nil(t, s.Current())
	assert.Equal(t, int32(-1), s.CurrentID())

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, seam.ErrNotFound)
	err = s.WithCurrent(func(*seam.Profile) error { return nil })
	assert.ErrorIs(t, err, seam.ErrNotFound)
}

func TestLoadThenSwitch(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 5, 11)
	s := New(mem)

	p, err := s.Load(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.ID())
	assert.Nil(t, s.Current(), "load must not activate")

	require.NoError(t, s.Switch(5))
	assert.Same(t, p, s.Current())
	assert.Equal(t, int32(5), s.CurrentID())
	assert.Equal(t, int32(11), regInt(t, s.Current(), seam.VPL2A))
}

func TestSwitchRequiresLoad(t *testing.T) {
	mem := newMemStorage()
	mem.put(t, 1, 1)
	s := New(mem)

	err := s.Switch(1)
	assert.ErrorIs(t, err, seam.ErrNotFound)
	assert.Nil(t, s.Current())
}

func TestLoadAndSwitch(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 2, 3)
	s := New(mem)

	require.NoError(t, s.LoadAndSwitch(context.Background(), 2))
	assert.Equal(t, int32(2), s.CurrentID())

	err := s.LoadAndSwitch(context.Background(), 9)
	assert.ErrorIs(t, err, seam.ErrLoadFailed)
	assert.Equal(t, int32(2), s.CurrentID())
}

func TestFailedLoadLeavesStateUntouched(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 4, 100)
	s := New(mem)
	require.NoError(t, s.LoadAndSwitch(context.Background(), 4))

	before := s.Current()
	beforeID := s.CurrentID()
	beforeVal := regInt(t, before, seam.OCOffsetZ)

	tests := map[string]func(){
		"corrupted json":  func() { mem.raw[4] = []byte(`{"id": 4, "v0": {"values": [1, 2,`) },
		"wrong id":        func() { mem.put(t, 4, 1); mem.raw[4] = []byte(`{"id": 5}`) },
		"bad values":      func() { mem.raw[4] = []byte(`{"id": 4, "v0": {"values": ["x"]}}`) },
		"foreign schema":  func() { mem.raw[4] = []byte(`{"schema": "urn:other", "id": 4}`) },
		"storage failure": func() { mem.readErr[4] = errors.New("disk on fire") },
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			corrupt()
			defer delete(mem.readErr, 4)

			_, err := s.Load(context.Background(), 4)
			require.ErrorIs(t, err, seam.ErrLoadFailed)

			assert.Same(t, before, s.Current())
			assert.Equal(t, beforeID, s.CurrentID())
			assert.Equal(t, beforeVal, regInt(t, s.Current(), seam.OCOffsetZ))

			loaded, err := s.Get(4)
			require.NoError(t, err)
			assert.Same(t, before, loaded, "failed load must not replace the loaded profile")
		})
	}
}

func TestLoadRejectsOutOfRangeID(t *testing.T) {
	s := New(newMemStorage(), WithMaxProfiles(8))
	assert.Equal(t, int32(8), s.MaxID())

	_, err := s.Load(context.Background(), 8)
	assert.ErrorIs(t, err, seam.ErrLoadFailed)
	assert.ErrorIs(t, err, seam.ErrIndexOutOfRange)

	_, err = s.Load(context.Background(), -1)
	assert.ErrorIs(t, err, seam.ErrIndexOutOfRange)
}

func TestLoadHonoursContext(t *testing.T) {
	mem := newMemStorage()
	mem.put(t, 0, 1)
	s := New(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Load(ctx, 0)
	assert.ErrorIs(t, err, seam.ErrLoadFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSwitchKeepsOldSnapshotForHolders(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 1, 1)
	mem.put(t, 2, 2)
	s := New(mem)
	ctx := context.Background()
	_, err := s.Load(ctx, 1)
	require.NoError(t, err)
	_, err = s.Load(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, s.Switch(1))
	held := s.Current()

	require.NoError(t, s.Switch(2))
	assert.Equal(t, int32(2), s.CurrentID())

	// the old reference still sees the complete old table
	for i := 0; i < seam.NumRegisters; i++ {
		require.Equal(t, int32(1), regInt(t, held, i))
	}
	assert.Equal(t, int32(1), held.ID())
}

func TestConcurrentReadersNeverSeeMixedSwitch(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 1, 1)
	mem.put(t, 2, 2)
	s := New(mem)
	ctx := context.Background()
	_, err := s.Load(ctx, 1)
	require.NoError(t, err)
	_, err = s.Load(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, s.Switch(1))

	done := make(chan struct{})
	var wg sync.WaitGroup
	mixed := make(chan int32, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				p := s.Current()
				want := p.Table().Values()[0]
				for _, v := range p.Table().Values() {
					if v != want {
						mixed <- p.ID()
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		require.NoError(t, s.Switch(int32(1+i%2)))
	}
	close(done)
	wg.Wait()
	close(mixed)
	for id := range mixed {
		t.Errorf("reader saw a mixed table for profile %d", id)
	}
}

func TestFillPreservesIdentity(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 1, 1)
	s := New(mem)
	require.NoError(t, s.LoadAndSwitch(context.Background(), 1))

	cur := s.Current()
	table := cur.Table()

	srcTable := seam.NewTable()
	require.NoError(t, srcTable.SetFloat(seam.XPLaserStrength, 0.75))
	src := seam.NewProfile(1, false, srcTable, seam.WithInfo(seam.Info{Name: "edited"}))

	require.NoError(t, s.Fill(src))
	assert.Same(t, cur, s.Current())
	assert.Same(t, table, s.Current().Table())
	assert.False(t, s.Current().Enabled())
	assert.Equal(t, "edited", s.Current().Name())

	f, err := s.Current().Table().Float(seam.XPLaserStrength)
	require.NoError(t, err)
	assert.Equal(t, float32(0.75), f)

	// src stays independent
	require.NoError(t, srcTable.SetFloat(seam.XPLaserStrength, 0.5))
	f, _ = s.Current().Table().Float(seam.XPLaserStrength)
	assert.Equal(t, float32(0.75), f)
}

func TestFillCopiesID(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 1, 1)
	s := New(mem)
	require.NoError(t, s.LoadAndSwitch(context.Background(), 1))

	require.NoError(t, s.Fill(seam.NewProfile(7, true, nil)))
	assert.Equal(t, int32(7), s.CurrentID())
}

func TestFillRefilesUnderNewID(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 3, 3)
	mem.put(t, 5, 5)
	s := New(mem, WithMaxProfiles(8))
	_, err := s.Load(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, s.LoadAndSwitch(context.Background(), 3))
	cur := s.Current()

	table := seam.NewTable()
	require.NoError(t, table.SetInt(seam.OCTrackingArea, 999))
	require.NoError(t, s.Fill(seam.NewProfile(5, true, table)))

	assert.Equal(t, []int32{5}, s.IDs())
	got, err := s.Get(5)
	require.NoError(t, err)
	assert.Same(t, cur, got)
	_, err = s.Get(3)
	assert.ErrorIs(t, err, seam.ErrNotFound)

	require.NoError(t, s.SaveAll(context.Background()))
	assert.Equal(t, []int32{5}, mem.writes)

	doc, err := mem.ReadProfile(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int32(999), doc.V0.Values[seam.OCTrackingArea])
	doc, err = mem.ReadProfile(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), doc.V0.Values[seam.OCTrackingArea])
}

func TestFillErrors(t *testing.T) {
	testutil.QuietLogs(t)
	s := New(newMemStorage())
	assert.ErrorIs(t, s.Fill(nil), seam.ErrNilProfile)
	assert.ErrorIs(t, s.Fill(seam.NewProfile(0, true, nil)), seam.ErrNotFound)

	mem := newMemStorage()
	mem.put(t, 1, 1)
	s = New(mem, WithMaxProfiles(4))
	require.NoError(t, s.LoadAndSwitch(context.Background(), 1))
	for _, id := range []int32{-1, 4, 300} {
		assert.ErrorIs(t, s.Fill(seam.NewProfile(id, true, nil)), seam.ErrIndexOutOfRange)
	}
	assert.Equal(t, int32(1), s.CurrentID())
	assert.Equal(t, []int32{1}, s.IDs())
}

func TestReloadOfCurrentKeepsEditsReachable(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 3, 3)
	s := New(mem)
	require.NoError(t, s.LoadAndSwitch(context.Background(), 3))
	cur := s.Current()

	_, err := s.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.Same(t, cur, s.Current(), "load does not switch")

	require.NoError(t, cur.Table().SetInt(seam.OCTrackingArea, 777))
	require.NoError(t, s.Disable(3))
	assert.False(t, cur.Enabled())

	require.NoError(t, s.Save(context.Background(), 3))
	doc, err := mem.ReadProfile(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, doc.Enabled)
	assert.Equal(t, int32(777), doc.V0.Values[seam.OCTrackingArea])

	require.NoError(t, s.Switch(3))
	assert.NotSame(t, cur, s.Current(), "switch publishes the reloaded copy")
}

func TestSetCurrentAliases(t *testing.T) {
	testutil.QuietLogs(t)
	s := New(newMemStorage())
	p := seam.NewProfile(12, true, nil)

	require.NoError(t, s.SetCurrent(p))
	assert.Same(t, p, s.Current())
	assert.Equal(t, int32(12), s.CurrentID())

	require.NoError(t, p.Table().SetInt(seam.KPDrop2, 5))
	assert.Equal(t, int32(5), regInt(t, s.Current(), seam.KPDrop2))

	// SetCurrent does not register the profile
	_, err := s.Get(12)
	assert.ErrorIs(t, err, seam.ErrNotFound)

	assert.ErrorIs(t, s.SetCurrent(nil), seam.ErrNilProfile)
	assert.Same(t, p, s.Current())
}

func TestSnapshotIsOwned(t *testing.T) {
	testutil.QuietLogs(t)
	s := New(newMemStorage())
	require.NoError(t, s.SetCurrent(seam.NewProfile(1, true, nil)))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.Fill(seam.NewProfile(1, true, seam.TableFromValues([]int32{9}))))

	assert.Equal(t, int32(0), regInt(t, snap, 0))
	assert.Equal(t, int32(9), regInt(t, s.Current(), 0))

	var seen int32
	require.NoError(t, s.WithCurrent(func(p *seam.Profile) error {
		seen = regInt(t, p, 0)
		return nil
	}))
	assert.Equal(t, int32(9), seen)
}

func TestEnableDisable(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 0, 0)
	mem.put(t, 1, 0)
	s := New(mem)
	ctx := context.Background()
	for _, id := range []int32{0, 1} {
		_, err := s.Load(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, s.Disable(1))
	p, _ := s.Get(1)
	assert.False(t, p.Enabled())
	require.NoError(t, s.Enable(1))
	assert.True(t, p.Enabled())

	s.DisableAll()
	for _, id := range s.IDs() {
		p, _ := s.Get(id)
		assert.False(t, p.Enabled())
	}
	s.EnableAll()
	for _, id := range s.IDs() {
		p, _ := s.Get(id)
		assert.True(t, p.Enabled())
	}

	assert.ErrorIs(t, s.Enable(42), seam.ErrNotFound)
}

func TestLoadAllCreatesMissing(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 0, 5)
	mem.put(t, 2, 6)
	mem.raw[3] = []byte(`not json`)
	s := New(mem, WithMaxProfiles(4), WithCreateMissing(true))

	n, err := s.LoadAll(context.Background())
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, seam.ErrLoadFailed)

	assert.Equal(t, []int32{0, 1, 2}, s.IDs())
	assert.Equal(t, []int32{1}, mem.writes)

	def, err := s.Get(1)
	require.NoError(t, err)
	assert.False(t, def.Enabled())
	assert.Equal(t, "Profile", def.Name())

	// the broken record was not overwritten
	assert.Equal(t, []byte(`not json`), mem.raw[3])
}

func TestLoadAllWithoutCreate(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	s := New(mem, WithMaxProfiles(3))

	n, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.IDs(), 3)
	assert.Empty(t, mem.writes)
}

func TestSaveAll(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 0, 1)
	s := New(mem, WithMaxProfiles(2))
	_, err := s.Load(context.Background(), 0)
	require.NoError(t, err)

	p, _ := s.Get(0)
	require.NoError(t, p.Table().SetInt(seam.OPDirection, 3))
	require.NoError(t, s.SaveAll(context.Background()))

	doc, err := mem.ReadProfile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), doc.V0.Values[seam.OPDirection])

	assert.ErrorIs(t, s.Save(context.Background(), 1), seam.ErrNotFound)
}

type readOnlySource struct{ m *memStorage }

func (r readOnlySource) ReadProfile(ctx context.Context, id int32) (*seam.Document, error) {
	return r.m.ReadProfile(ctx, id)
}

func TestSaveWithoutSink(t *testing.T) {
	testutil.QuietLogs(t)
	mem := newMemStorage()
	mem.put(t, 0, 1)
	s := New(readOnlySource{mem})
	_, err := s.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Error(t, s.Save(context.Background(), 0))

	other := newMemStorage()
	s = New(readOnlySource{mem}, WithSink(other))
	_, err = s.Load(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), 0))
	assert.Equal(t, []int32{0}, other.writes)
}
