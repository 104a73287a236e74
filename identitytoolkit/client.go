// Package identitytoolkit wraps the Google Cloud Identity Platform
// (Identity Toolkit) API services for the calls the fanout adapters need:
// listing and creating tenants, creating a user inside a tenant, and sending
// a tenant password reset email.
//
// Admin calls are authenticated with OAuth2 credentials; the out-of-band
// email call is authenticated with the project API key.
package identitytoolkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	itkv1 "google.golang.org/api/identitytoolkit/v1"
	itkv2 "google.golang.org/api/identitytoolkit/v2"
	"google.golang.org/api/option"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/retry"
	"github.com/arloliu/fanout/types"
)

const (
	// Scope is the OAuth2 scope requested for admin calls.
	Scope = "https://www.googleapis.com/auth/cloud-platform"

	// DefaultPageSize is the tenant listing page size.
	DefaultPageSize = 100

	requestTypePasswordReset = "PASSWORD_RESET"
)

// ErrProjectRequired is returned by New when no project ID is given.
var ErrProjectRequired = errors.New("identitytoolkit: project ID is required")

// ErrAPIKeyRequired is returned by SendPasswordReset when no API key is configured.
var ErrAPIKeyRequired = errors.New("identitytoolkit: API key is required")

// Client calls the Identity Toolkit API for one project.
//
// Client is safe for concurrent use.
type Client struct {
	projectID string
	apiKey    string

	tenants  *itkv2.ProjectsTenantsService
	accounts *itkv1.AccountsService
	oob      *itkv1.AccountsService

	policy       *retry.Policy
	createPolicy *retry.Policy
	pageSize     int
	logger       types.Logger
}

type options struct {
	apiKey     string
	baseURL    string
	admin      *http.Client
	keyed      *http.Client
	clientOpts []option.ClientOption
	policy     *retry.Policy
	pageSize   int
	logger     types.Logger
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the authenticated client used for admin calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.admin = hc
		}
	}
}

// WithKeyedHTTPClient sets the client used for API key calls (default: plain client, 30s timeout).
func WithKeyedHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.keyed = hc
		}
	}
}

// WithClientOptions adds Google API client options for admin calls, such as
// option.WithCredentialsFile. They are ignored when WithHTTPClient is set.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithAPIKey sets the project API key used by SendPasswordReset.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

// WithPageSize sets the tenant listing page size.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithRetryPolicy overrides the retry policy for transient API errors.
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(o *options) {
		if policy != nil {
			o.policy = policy
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a client for the given project.
//
// Without WithHTTPClient or WithClientOptions, admin calls use Application
// Default Credentials.
//
// Parameters:
//   - ctx: Context for credential discovery
//   - projectID: Google Cloud project ID
//   - opts: Optional HTTP clients, API key, endpoint, retry policy, logger
//
// Returns:
//   - *Client: Initialized client
//   - error: ErrProjectRequired when projectID is empty, or a service setup error
//
// Example:
//
//	hc, err := identitytoolkit.NewHTTPClientFromFile(ctx, "serviceAccountKey.json")
//	if err != nil { /* handle */ }
//	client, err := identitytoolkit.New(ctx, "my-project",
//	    identitytoolkit.WithHTTPClient(hc),
//	    identitytoolkit.WithAPIKey(os.Getenv("API_KEY")),
//	)
func New(ctx context.Context, projectID string, opts ...Option) (*Client, error) {
	if projectID == "" {
		return nil, ErrProjectRequired
	}

	o := &options{
		keyed:    &http.Client{Timeout: 30 * time.Second},
		policy:   retry.DefaultPolicy(),
		pageSize: DefaultPageSize,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var endpoint []option.ClientOption
	if o.baseURL != "" {
		endpoint = append(endpoint, option.WithEndpoint(o.baseURL))
	}

	adminOpts := append([]option.ClientOption{}, endpoint...)
	if o.admin != nil {
		adminOpts = append(adminOpts, option.WithHTTPClient(o.admin))
	} else {
		adminOpts = append(adminOpts, option.WithScopes(Scope))
		adminOpts = append(adminOpts, o.clientOpts...)
	}

	v2, err := itkv2.NewService(ctx, adminOpts...)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit v2 service: %w", err)
	}
	v1, err := itkv1.NewService(ctx, adminOpts...)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit v1 service: %w", err)
	}
	keyed, err := itkv1.NewService(ctx, append(endpoint, option.WithHTTPClient(o.keyed))...)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit keyed service: %w", err)
	}

	return &Client{
		projectID:    projectID,
		apiKey:       o.apiKey,
		tenants:      v2.Projects.Tenants,
		accounts:     v1.Accounts,
		oob:          keyed.Accounts,
		policy:       o.policy,
		createPolicy: o.policy.WithRetryable(IsRateLimited),
		pageSize:     o.pageSize,
		logger:       o.logger,
	}, nil
}

// ProjectID returns the project the client operates on.
func (c *Client) ProjectID() string {
	return c.projectID
}

// NewHTTPClient returns an OAuth2 client authenticated with service account
// (or other Google) credentials in JSON form.
func NewHTTPClient(ctx context.Context, credentialsJSON []byte) (*http.Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// NewHTTPClientFromFile is NewHTTPClient reading the credentials from path.
func NewHTTPClientFromFile(ctx context.Context, path string) (*http.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	return NewHTTPClient(ctx, data)
}

// Tenant is an Identity Platform tenant.
type Tenant struct {
	// Name is the resource name, "projects/{project}/tenants/{id}".
	Name string `json:"name,omitempty"`

	DisplayName           string `json:"displayName"`
	AllowPasswordSignup   bool   `json:"allowPasswordSignup"`
	EnableEmailLinkSignin bool   `json:"enableEmailLinkSignin"`
}

// ID returns the last segment of the resource name.
func (t Tenant) ID() string {
	if i := strings.LastIndexByte(t.Name, '/'); i >= 0 {
		return t.Name[i+1:]
	}

	return t.Name
}

func tenantFromAPI(t *itkv2.GoogleCloudIdentitytoolkitAdminV2Tenant) Tenant {
	if t == nil {
		return Tenant{}
	}

	return Tenant{
		Name:                  t.Name,
		DisplayName:           t.DisplayName,
		AllowPasswordSignup:   t.AllowPasswordSignup,
		EnableEmailLinkSignin: t.EnableEmailLinkSignin,
	}
}

// TenantPage is one page of a tenant listing.
type TenantPage struct {
	Tenants       []Tenant `json:"tenants"`
	NextPageToken string   `json:"nextPageToken"`
}

// User is the payload of a tenant user creation.
type User struct {
	Email         string
	Password      string
	DisplayName   string
	EmailVerified bool
}

// ListTenants fetches one page of tenants. An empty token requests the first page.
func (c *Client) ListTenants(ctx context.Context, pageToken string) (TenantPage, error) {
	var resp *itkv2.GoogleCloudIdentitytoolkitAdminV2ListTenantsResponse
	err := c.do(ctx, c.policy, "list tenants", func(ctx context.Context) error {
		call := c.tenants.List(c.parent()).PageSize(int64(c.pageSize)).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var err error
		resp, err = call.Do()

		return err
	})
	if err != nil {
		return TenantPage{}, fmt.Errorf("list tenants: %w", err)
	}

	page := TenantPage{
		Tenants:       make([]Tenant, 0, len(resp.Tenants)),
		NextPageToken: resp.NextPageToken,
	}
	for _, t := range resp.Tenants {
		page.Tenants = append(page.Tenants, tenantFromAPI(t))
	}

	return page, nil
}

// CreateTenant creates a tenant and returns it with its server-assigned name.
//
// Only rate limiting is retried: after a server error or a lost response the
// tenant may already exist, and a second POST would create a duplicate.
func (c *Client) CreateTenant(ctx context.Context, t Tenant) (Tenant, error) {
	req := &itkv2.GoogleCloudIdentitytoolkitAdminV2Tenant{
		DisplayName:           t.DisplayName,
		AllowPasswordSignup:   t.AllowPasswordSignup,
		EnableEmailLinkSignin: t.EnableEmailLinkSignin,
		ForceSendFields:       []string{"AllowPasswordSignup", "EnableEmailLinkSignin"},
	}

	var created *itkv2.GoogleCloudIdentitytoolkitAdminV2Tenant
	err := c.do(ctx, c.createPolicy, "create tenant", func(ctx context.Context) error {
		var err error
		created, err = c.tenants.Create(c.parent(), req).Context(ctx).Do()

		return err
	})
	if err != nil {
		return Tenant{}, fmt.Errorf("create tenant %q: %w", t.DisplayName, err)
	}

	return tenantFromAPI(created), nil
}

// CreateUser creates a user in the tenant.
//
// Returns:
//   - error: wraps types.ErrPrincipalExists when the email is already registered
func (c *Client) CreateUser(ctx context.Context, tenantID string, u User) error {
	req := &itkv1.GoogleCloudIdentitytoolkitV1SignUpRequest{
		TargetProjectId: c.projectID,
		TenantId:        tenantID,
		Email:           u.Email,
		Password:        u.Password,
		DisplayName:     u.DisplayName,
		EmailVerified:   u.EmailVerified,
		ForceSendFields: []string{"EmailVerified"},
	}

	err := c.do(ctx, c.policy, "create user", func(ctx context.Context) error {
		_, err := c.accounts.SignUp(req).Context(ctx).Do()

		return err
	})
	if err != nil {
		return fmt.Errorf("create user in tenant %s: %w", tenantID, err)
	}

	return nil
}

// SendPasswordReset sends the tenant's password reset email to email.
func (c *Client) SendPasswordReset(ctx context.Context, tenantID, email string) error {
	if c.apiKey == "" {
		return ErrAPIKeyRequired
	}

	req := &itkv1.GoogleCloudIdentitytoolkitV1GetOobCodeRequest{
		RequestType: requestTypePasswordReset,
		Email:       email,
		TenantId:    tenantID,
	}

	err := c.do(ctx, c.policy, "send oob code", func(ctx context.Context) error {
		_, err := c.oob.SendOobCode(req).Context(ctx).Do(googleapi.QueryParameter("key", c.apiKey))

		return err
	})
	if err != nil {
		return fmt.Errorf("send password reset in tenant %s: %w", tenantID, err)
	}

	return nil
}

func (c *Client) parent() string {
	return "projects/" + c.projectID
}

// do runs fn under policy, classifying every failure before the policy sees it.
func (c *Client) do(ctx context.Context, policy *retry.Policy, op string, fn func(context.Context) error) error {
	return policy.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("identity toolkit call failed", "op", op, "error", err)

		return classify(err)
	})
}
