package directory

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/identitytoolkit"
	"github.com/arloliu/fanout/internal/paging"
	"github.com/arloliu/fanout/internal/reconcile"
	"github.com/arloliu/fanout/internal/retry"
	"github.com/arloliu/fanout/types"
)

// fakeTenantAPI serves the tenant endpoints from memory, two tenants per page.
type fakeTenantAPI struct {
	mu      sync.Mutex
	tenants []identitytoolkit.Tenant
}

func (f *fakeTenantAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		offset := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			_, _ = fmt.Sscanf(tok, "o%d", &offset)
		}
		end := min(offset+2, len(f.tenants))
		resp := identitytoolkit.TenantPage{Tenants: f.tenants[offset:end]}
		if end < len(f.tenants) {
			resp.NextPageToken = fmt.Sprintf("o%d", end)
		}
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		var t identitytoolkit.Tenant
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		t.Name = fmt.Sprintf("projects/p/tenants/%s-id%d", t.DisplayName, len(f.tenants))
		f.tenants = append(f.tenants, t)
		_ = json.NewEncoder(w).Encode(t)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newIdentityToolkitDirectory(t *testing.T, api http.Handler) *IdentityToolkit {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := identitytoolkit.New(t.Context(), "p",
		identitytoolkit.WithBaseURL(srv.URL),
		identitytoolkit.WithHTTPClient(srv.Client()),
		identitytoolkit.WithRetryPolicy(&retry.Policy{MaxAttempts: 2, Base: time.Millisecond, Cap: time.Millisecond}),
	)
	require.NoError(t, err)

	return NewIdentityToolkit(client)
}

func TestIdentityToolkit_ListPartitionsPage(t *testing.T) {
	api := &fakeTenantAPI{tenants: []identitytoolkit.Tenant{
		{Name: "projects/p/tenants/a", DisplayName: "tenant-0"},
		{Name: "projects/p/tenants/b", DisplayName: "tenant-1"},
		{Name: "projects/p/tenants/c", DisplayName: "tenant-2"},
	}}
	dir := newIdentityToolkitDirectory(t, api)

	page, err := dir.ListPartitionsPage(t.Context(), "")
	require.NoError(t, err)
	require.Equal(t, []types.Partition{{ID: "a", DisplayName: "tenant-0"}, {ID: "b", DisplayName: "tenant-1"}}, page.Partitions)
	require.Equal(t, "o2", page.NextPageToken)

	all, err := paging.Partitions(t.Context(), dir)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[2].ID)
}

func TestIdentityToolkit_CreatePartition(t *testing.T) {
	api := &fakeTenantAPI{}
	dir := newIdentityToolkitDirectory(t, api)

	p, err := dir.CreatePartition(t.Context(), "tenant-0", types.PartitionConfig{AllowPasswordSignup: true})
	require.NoError(t, err)
	require.Equal(t, types.Partition{ID: "tenant-0-id0", DisplayName: "tenant-0"}, p)
	require.True(t, api.tenants[0].AllowPasswordSignup)
	require.False(t, api.tenants[0].EnableEmailLinkSignin)
}

func TestIdentityToolkit_Reconcile(t *testing.T) {
	api := &fakeTenantAPI{tenants: []identitytoolkit.Tenant{
		{Name: "projects/p/tenants/a", DisplayName: "tenant-0"},
	}}
	dir := newIdentityToolkitDirectory(t, api)

	res, err := reconcile.New(dir).EnsurePartitionCount(t.Context(), 4)
	require.NoError(t, err)
	require.Len(t, res.Created, 3)
	require.Len(t, res.Partitions, 4)
	require.Equal(t, "tenant-3", res.Created[2].DisplayName)
}

func TestIdentityToolkit_Errors(t *testing.T) {
	dir := newIdentityToolkitDirectory(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := dir.ListPartitionsPage(t.Context(), "")
	require.ErrorIs(t, err, types.ErrTransient)

	_, err = dir.CreatePartition(t.Context(), "tenant-0", types.PartitionConfig{})
	require.ErrorIs(t, err, types.ErrTransient)
}
