package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	appconfig "github.com/wolfman30/dental-booking-core/internal/config"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/internal/roster"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client without address")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for live redis")
	}
	defer client.Close()

	mr.Close()
	if down := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); down != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildCacheStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), CacheBackend: "redis"}
	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), false)
	defer client.Close()

	store, name := BuildCacheStore(cfg, client, logging.New("error"))
	if name != "redis" {
		t.Fatalf("expected redis backend, got %s", name)
	}
	if _, ok := store.(*cache.RedisStore); !ok {
		t.Fatalf("expected *cache.RedisStore, got %T", store)
	}

	if _, name := BuildCacheStore(cfg, nil, logging.New("error")); name != "memory" {
		t.Fatalf("expected memory fallback without client, got %s", name)
	}
	if _, name := BuildCacheStore(&appconfig.Config{CacheBackend: "memory"}, client, logging.New("error")); name != "memory" {
		t.Fatalf("expected memory backend, got %s", name)
	}
}

func TestConnectPostgresEmptyURLReturnsNil(t *testing.T) {
	if pool := ConnectPostgres(context.Background(), "", logging.New("error")); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildInteractionStoreFallsBackToLog(t *testing.T) {
	store, name := BuildInteractionStore(nil, logging.New("error"))
	if name != "log" {
		t.Fatalf("expected log store, got %s", name)
	}
	if _, ok := store.(*interactions.LogStore); !ok {
		t.Fatalf("expected *interactions.LogStore, got %T", store)
	}
}

func TestLoadRosterDefault(t *testing.T) {
	r, err := LoadRoster(&appconfig.Config{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Providers()) == 0 {
		t.Fatalf("expected built-in providers")
	}
}

func TestLoadRosterMissingFile(t *testing.T) {
	cfg := &appconfig.Config{RosterPath: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := LoadRoster(cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for missing roster file")
	}
}

func TestLoadRosterFromFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "roster", "testdata", "roster.yaml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r, err := LoadRoster(&appconfig.Config{RosterPath: path}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Providers()) == 0 {
		t.Fatalf("expected providers from file")
	}
}

type stubLister struct {
	providers   []pms.Resource
	operatories []pms.Resource
	err         error
}

func (s stubLister) ListProviders(context.Context) ([]pms.Resource, error) {
	return s.providers, s.err
}

func (s stubLister) ListOperatories(context.Context) ([]pms.Resource, error) {
	return s.operatories, s.err
}

func TestCheckRosterDrift(t *testing.T) {
	dir := directory.New(roster.Default())
	lister := stubLister{
		providers: []pms.Resource{
			{Name: "resources/provider_001", RemoteID: "001"},
			{Name: "resources/provider_100"},
			{RemoteID: "101"}, {RemoteID: "102"}, {RemoteID: "H20"},
		},
		operatories: []pms.Resource{
			{Name: "resources/operatory_7"}, {Name: "resources/operatory_8"},
			{Name: "resources/operatory_10"}, {Name: "resources/operatory_11"},
			{Name: "resources/operatory_12"}, {Name: "resources/operatory_13"},
		},
	}

	drift, err := CheckRosterDrift(context.Background(), lister, dir, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drift.MissingProviders) != 1 || drift.MissingProviders[0] != "6" {
		t.Fatalf("expected provider 6 missing, got %v", drift.MissingProviders)
	}
	if len(drift.MissingOperatories) != 0 {
		t.Fatalf("expected no missing operatories, got %v", drift.MissingOperatories)
	}
}

func TestCheckRosterDriftUpstreamError(t *testing.T) {
	dir := directory.New(roster.Default())
	_, err := CheckRosterDrift(context.Background(), stubLister{err: errors.New("503")}, dir, logging.New("error"))
	if err == nil {
		t.Fatalf("expected error when PMS is unavailable")
	}
}
