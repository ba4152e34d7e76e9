package live

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bpsr-logs/livemeter/internal/attr"
	"github.com/bpsr-logs/livemeter/internal/capture"
	"github.com/bpsr-logs/livemeter/internal/crowdsource"
	"github.com/bpsr-logs/livemeter/internal/encounter"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/bpsr-logs/livemeter/internal/storage/memory"
	"github.com/bpsr-logs/livemeter/internal/tables"
	"github.com/bpsr-logs/livemeter/pkg/blueproto"
)

const (
	ogreID    int32 = 10032
	drakeID   int32 = 30001
	playerUID int64 = 4242
	ogreUID   int64 = 777
	scope           = "test-meter"
)

func ptr[T any](v T) *T { return &v }

func intAttr(id int32, v int64) *blueproto.Attr {
	return &blueproto.Attr{ID: ptr(id), RawData: protowire.AppendVarint(nil, uint64(v))}
}

type fakeSubmitter struct {
	mu      sync.Mutex
	reports []model.HPReport
}

func (f *fakeSubmitter) Submit(r model.HPReport) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return true
}

func (f *fakeSubmitter) Reports() []model.HPReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.HPReport(nil), f.reports...)
}

type fakePoster struct {
	mu      sync.Mutex
	reports []model.HPReport
	err     error
}

func (f *fakePoster) CreateHPReport(_ context.Context, r model.HPReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

type packetLog struct {
	packets []capture.Packet
	err     error
}

func (l *packetLog) Write(p capture.Packet) error {
	l.packets = append(l.packets, p)
	return l.err
}

type brokenSnapshots struct{}

func (brokenSnapshots) Save(context.Context, string, model.CrowdsourceSnapshot) error {
	return errors.New("disk full")
}

func (brokenSnapshots) Load(context.Context, string) (model.CrowdsourceSnapshot, bool, error) {
	return model.CrowdsourceSnapshot{}, false, errors.New("disk gone")
}

type harness struct {
	svc       *Service
	store     *encounter.Store
	reports   *fakeSubmitter
	poster    *fakePoster
	snapshots *memory.Backend
	source    *capture.ChannelSource
	logs      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tbl := tables.New(
		map[int32]string{ogreID: "Tempest Ogre", drakeID: "Ancient Drake"},
		map[int32]string{ogreID: "Tempest Ogre", drakeID: "Ancient Drake"},
		map[int32]string{ogreID: "ogre-01", drakeID: "drake-01"},
	)
	clock := time.UnixMilli(1_700_000_000_000)
	store := encounter.NewStore(
		crowdsource.NewDetector(tbl, logger),
		encounter.WithLogger(logger),
		encounter.WithClock(func() time.Time { return clock }),
	)

	h := &harness{
		store:     store,
		reports:   &fakeSubmitter{},
		poster:    &fakePoster{},
		snapshots: memory.New(),
		source:    capture.NewChannelSource(16, nil),
		logs:      logs,
	}

	svc, err := New(Dependencies{
		Store:     store,
		Tables:    tbl,
		Reports:   h.reports,
		Poster:    h.poster,
		Snapshots: h.snapshots,
		Source:    h.source,
		Scope:     scope,
		Logger:    logger,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) process(t *testing.T, op capture.Opcode, data []byte) error {
	t.Helper()
	return h.svc.Process(context.Background(), capture.Packet{Opcode: op, Data: data})
}

func containerData() []byte {
	msg := &blueproto.SyncContainerData{VData: &blueproto.CharSerialize{
		CharID:   ptr(playerUID),
		CharBase: &blueproto.CharBaseInfo{Name: ptr("Sailor")},
		SceneData: &blueproto.SceneData{
			LineID: ptr(uint32(12)),
			Pos:    &blueproto.Vector3{X: ptr(float32(100.5)), Y: ptr(float32(-40))},
		},
	}}
	return msg.Marshal()
}

func ogreAppears(hp int64) []byte {
	msg := &blueproto.SyncNearEntities{Appear: []*blueproto.AoiSyncEntity{{
		UUID: ptr(ogreUID<<16 | 64),
		Attrs: &blueproto.AttrCollection{Attrs: []*blueproto.Attr{
			intAttr(attr.IDID, int64(ogreID)),
			intAttr(attr.IDMaxHP, 1000),
			intAttr(attr.IDCurrHP, hp),
		}},
	}}}
	return msg.Marshal()
}

func ogreHit(amount int64) []byte {
	msg := &blueproto.SyncNearDeltaInfo{DeltaInfos: []*blueproto.AoiSyncDelta{{
		UUID: ptr(ogreUID<<16 | 64),
		SkillEffects: &blueproto.SkillEffect{Damages: []*blueproto.SyncDamageInfo{
			{Value: ptr(amount)},
		}},
	}}}
	return msg.Marshal()
}

func TestNew_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps Dependencies
	}{
		{"no store", Dependencies{}},
		{"no tables", Dependencies{Store: encounter.NewStore(nil)}},
		{"no reporter", Dependencies{Store: encounter.NewStore(nil), Tables: tables.New(nil, nil, nil)}},
		{"no snapshots", Dependencies{Store: encounter.NewStore(nil), Tables: tables.New(nil, nil, nil), Reports: &fakeSubmitter{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps)
			assert.Error(t, err)
		})
	}
}

func TestProcess_ReportsOnFirstObservationOnly(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.process(t, capture.OpSyncContainerData, containerData()))
	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(870)))

	reports := h.reports.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, model.HPReport{MonsterID: ogreID, HPPct: 87, Line: 12, PosX: 100.5, PosY: -40}, reports[0])

	// same reading again
	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(870)))
	assert.Len(t, h.reports.Reports(), 1)

	// next multiple of five
	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(850)))
	reports = h.reports.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, int32(85), reports[1].HPPct)
}

func TestProcess_DamagePersistsSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(1000)))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(1500)))

	snap, found, err := h.snapshots.Load(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.CrowdsourceSnapshot{MonsterID: ogreID, MonsterName: "Tempest Ogre", RemoteID: "ogre-01"}, snap)

	m, ok := h.svc.CrowdsourcedMonster()
	require.True(t, ok)
	assert.Equal(t, "Tempest Ogre", m.Name)
	assert.Equal(t, ogreID, m.ID)
	require.NotNil(t, m.RemoteID)
	assert.Equal(t, "ogre-01", *m.RemoteID)

	name, ok := h.svc.LastHitBossName()
	assert.True(t, ok)
	assert.Equal(t, "Tempest Ogre", name)

	header, err := h.svc.HeaderInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), header.TotalDmg)
}

func TestProcess_SnapshotSaveFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Snapshots = brokenSnapshots{}

	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(1000)))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(10)))

	assert.Contains(t, h.logs.String(), "Failed to persist crowdsourced monster snapshot")
	_, ok := h.svc.CrowdsourcedMonster()
	assert.True(t, ok, "state is kept even when persistence fails")
}

func TestProcess_PausedDropsPackets(t *testing.T) {
	h := newHarness(t)

	assert.True(t, h.svc.TogglePause())
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(100)))
	require.NoError(t, h.process(t, capture.OpServerChangeInfo, nil))

	assert.Equal(t, int64(2), h.svc.Dropped())
	assert.Equal(t, int64(0), h.svc.Processed())
	_, err := h.svc.HeaderInfo()
	assert.ErrorIs(t, err, encounter.ErrNoDamage)

	assert.False(t, h.svc.TogglePause())
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(100)))
	header, err := h.svc.HeaderInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(100), header.TotalDmg)
}

func TestProcess_RecordsEveryPacket(t *testing.T) {
	h := newHarness(t)
	rec := &packetLog{}
	h.svc.deps.Recorder = rec

	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(1)))
	h.svc.TogglePause()
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(2)))
	require.NoError(t, h.process(t, capture.Opcode(0x99), nil))

	require.Len(t, rec.packets, 3)
	assert.Equal(t, capture.Opcode(0x99), rec.packets[2].Opcode)

	rec.err = errors.New("disk full")
	h.svc.TogglePause()
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(3)))
	assert.Contains(t, h.logs.String(), "Failed to record packet")
	header, err := h.svc.HeaderInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(4), header.TotalDmg)
}

func TestProcess_UnhandledOpcodeIgnored(t *testing.T) {
	h := newHarness(t)

	assert.NoError(t, h.process(t, capture.Opcode(0x99), []byte{1, 2, 3}))
	assert.Equal(t, int64(0), h.svc.Processed())
}

func TestProcess_ErrorsDoNotStopLaterPackets(t *testing.T) {
	h := newHarness(t)

	err := h.process(t, capture.OpSyncNearEntities, []byte{0x0a, 0x05, 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding SyncNearEntities")

	// appearing entity without uuid
	bad := (&blueproto.SyncNearEntities{Appear: []*blueproto.AoiSyncEntity{{}}}).Marshal()
	err = h.process(t, capture.OpSyncNearEntities, bad)
	assert.ErrorIs(t, err, encounter.ErrIncompleteMessage)

	require.NoError(t, h.process(t, capture.OpSyncServerTime, nil))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(5)))
	assert.Equal(t, int64(4), h.svc.Processed())
	assert.Contains(t, h.logs.String(), "Error processing packet")
}

func TestServerChange_RestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	saved := model.CrowdsourceSnapshot{MonsterID: drakeID, MonsterName: "Ancient Drake", RemoteID: "drake-01"}
	require.NoError(t, h.snapshots.Save(ctx, scope, saved))

	require.NoError(t, h.process(t, capture.OpSyncContainerData, containerData()))
	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(1000)))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(10)))

	// the hit replaced the stored snapshot with the ogre
	require.NoError(t, h.snapshots.Save(ctx, scope, saved))

	require.NoError(t, h.process(t, capture.OpServerChangeInfo, nil))

	_, err := h.svc.HeaderInfo()
	assert.ErrorIs(t, err, encounter.ErrNoDamage)
	_, ok, err := h.svc.LocalPlayerLine()
	require.NoError(t, err)
	assert.False(t, ok)

	m, ok := h.svc.CrowdsourcedMonster()
	require.True(t, ok)
	assert.Equal(t, drakeID, m.ID)
	assert.Equal(t, "Ancient Drake", m.Name)
}

func TestServerChange_LoadFailureStillResets(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Snapshots = brokenSnapshots{}

	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(1000)))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(10)))
	require.NoError(t, h.process(t, capture.OpServerChangeInfo, nil))

	_, ok := h.svc.CrowdsourcedMonster()
	assert.False(t, ok)
	assert.Contains(t, h.logs.String(), "Failed to load crowdsourced monster snapshot")
}

func TestRun_ConsumesUntilSourceCloses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.source.Send(ctx, capture.Packet{Opcode: capture.OpSyncContainerData, Data: containerData()}))
	require.NoError(t, h.source.Send(ctx, capture.Packet{Opcode: capture.OpSyncNearEntities, Data: ogreAppears(870)}))
	require.NoError(t, h.source.Send(ctx, capture.Packet{Opcode: capture.OpSyncNearDeltaInfo, Data: ogreHit(42)}))
	h.source.Close()

	require.NoError(t, h.svc.Run(ctx))
	assert.Equal(t, int64(3), h.svc.Processed())
	assert.Len(t, h.reports.Reports(), 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_NoSource(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Source = nil
	assert.Error(t, h.svc.Run(context.Background()))
}

func TestSetCrowdsourcedMonsterRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.svc.SetCrowdsourcedMonsterRemote(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownRemoteID)
	_, ok := h.svc.CrowdsourcedMonster()
	assert.False(t, ok)

	require.NoError(t, h.svc.SetCrowdsourcedMonsterRemote(ctx, "drake-01"))

	m, ok := h.svc.CrowdsourcedMonster()
	require.True(t, ok)
	assert.Equal(t, drakeID, m.ID)
	assert.Equal(t, "Ancient Drake", m.Name)

	snap, found, err := h.snapshots.Load(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "drake-01", snap.RemoteID)
}

func TestCrowdsourcedMonsterOptions_Sorted(t *testing.T) {
	h := newHarness(t)

	opts := h.svc.CrowdsourcedMonsterOptions()
	require.Len(t, opts, 2)
	assert.Equal(t, "Ancient Drake", opts[0].Name)
	assert.Equal(t, "Tempest Ogre", opts[1].Name)
	assert.Equal(t, "ogre-01", opts[1].RemoteID)
}

func TestLocalPlayerLine(t *testing.T) {
	h := newHarness(t)

	_, ok, err := h.svc.LocalPlayerLine()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.process(t, capture.OpSyncContainerData, containerData()))
	line, ok, err := h.svc.LocalPlayerLine()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(12), line)
}

func TestMarkCurrentLineDead(t *testing.T) {
	ctx := context.Background()

	t.Run("no monster", func(t *testing.T) {
		h := newHarness(t)
		assert.ErrorIs(t, h.svc.MarkCurrentLineDead(ctx), encounter.ErrNoCrowdsourceMonster)
	})

	t.Run("no scene", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.svc.SetCrowdsourcedMonsterRemote(ctx, "ogre-01"))
		assert.ErrorIs(t, h.svc.MarkCurrentLineDead(ctx), encounter.ErrNoScene)
		assert.Empty(t, h.poster.reports)
	})

	t.Run("reports zero percent", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.svc.SetCrowdsourcedMonsterRemote(ctx, "ogre-01"))
		require.NoError(t, h.process(t, capture.OpSyncContainerData, containerData()))

		require.NoError(t, h.svc.MarkCurrentLineDead(ctx))
		require.Len(t, h.poster.reports, 1)
		assert.Equal(t, model.HPReport{MonsterID: ogreID, HPPct: 0, Line: 12, PosX: 100.5, PosY: -40}, h.poster.reports[0])
		assert.Empty(t, h.reports.Reports(), "dead reports bypass the async queue")
	})

	t.Run("http failure", func(t *testing.T) {
		h := newHarness(t)
		h.poster.err = errors.New("status 500")
		require.NoError(t, h.svc.SetCrowdsourcedMonsterRemote(ctx, "ogre-01"))
		require.NoError(t, h.process(t, capture.OpSyncContainerData, containerData()))

		err := h.svc.MarkCurrentLineDead(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send HP report")
	})

	t.Run("no poster", func(t *testing.T) {
		h := newHarness(t)
		h.svc.deps.Poster = nil
		assert.ErrorIs(t, h.svc.MarkCurrentLineDead(ctx), ErrNoPoster)
	})
}

func TestResetAndHardReset(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.process(t, capture.OpSyncNearEntities, ogreAppears(1000)))
	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(10)))
	h.svc.TogglePause()

	h.svc.Reset()
	_, err := h.svc.HeaderInfo()
	assert.ErrorIs(t, err, encounter.ErrNoDamage)
	assert.False(t, h.store.IsPaused())
	assert.Equal(t, int64(0), h.source.Restarts())

	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(10)))
	h.svc.HardReset()
	_, err = h.svc.HeaderInfo()
	assert.ErrorIs(t, err, encounter.ErrNoDamage)
	assert.Equal(t, int64(1), h.source.Restarts())
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		header  model.HeaderInfo
		dps     int64
		summary string
	}{
		{
			name:    "minute fight",
			header:  model.HeaderInfo{TotalDmg: 1_234_567, ElapsedMs: 83_500},
			dps:     14_785,
			summary: "1,234,567 damage in 1 minute 23 seconds (14,785 dps)",
		},
		{
			name:    "single tick",
			header:  model.HeaderInfo{TotalDmg: 900, ElapsedMs: 0},
			dps:     900,
			summary: "900 damage in 0 seconds (900 dps)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dps, DPS(tt.header))
			assert.Equal(t, tt.summary, Summary(tt.header))
		})
	}
}

func TestLogSummary(t *testing.T) {
	h := newHarness(t)

	h.svc.LogSummary()
	assert.Contains(t, h.logs.String(), "no damage recorded")

	require.NoError(t, h.process(t, capture.OpSyncNearDeltaInfo, ogreHit(2500)))
	h.svc.LogSummary()
	assert.Contains(t, h.logs.String(), "2,500 damage")
}

func TestSessionAttrs(t *testing.T) {
	h := newHarness(t)
	provider := SessionAttrs(h.store)

	attrs := provider()
	require.Len(t, attrs, 2)
	assert.Equal(t, "paused", attrs[0].Key)
	assert.False(t, attrs[0].Value.Bool())

	h.svc.TogglePause()
	require.NoError(t, h.svc.SetCrowdsourcedMonsterRemote(context.Background(), "ogre-01"))

	attrs = provider()
	require.Len(t, attrs, 3)
	assert.True(t, attrs[0].Value.Bool())
	assert.Equal(t, "tracked", attrs[2].Key)
	assert.Equal(t, "Tempest Ogre", attrs[2].Value.String())
}
