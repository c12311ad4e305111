package firestore

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	defaultDialTimeout = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
)

// ErrProviderClosed is returned after Close has been called.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Settings configures the Firestore client owned by a Provider.
type Settings struct {
	ProjectID       string
	EmulatorHost    string
	CredentialsFile string
	DialTimeout     time.Duration
}

// Provider lazily initialises and owns a shared Firestore client.
type Provider struct {
	settings Settings

	mu     sync.Mutex
	client *firestore.Client
	err    error
	done   bool
	closed bool
}

// NewProvider constructs a Provider with the supplied settings.
func NewProvider(settings Settings) *Provider {
	if settings.DialTimeout <= 0 {
		settings.DialTimeout = defaultDialTimeout
	}
	return &Provider{settings: settings}
}

// Client returns the shared Firestore client, dialling it on first use.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if p == nil {
		return nil, errors.New("firestore: provider is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.done {
		return p.client, p.err
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.settings.DialTimeout)
	defer cancel()
	p.client, p.err = p.dial(dialCtx)
	p.done = true
	return p.client, p.err
}

func (p *Provider) dial(ctx context.Context) (*firestore.Client, error) {
	projectID := strings.TrimSpace(p.settings.ProjectID)
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	opts := make([]option.ClientOption, 0, 2)
	emulator := strings.TrimSpace(p.settings.EmulatorHost)
	if emulator == "" {
		emulator = strings.TrimSpace(os.Getenv(envEmulatorHost))
	}
	if emulator != "" {
		conn, err := grpc.NewClient(emulator, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, WrapError("provider.dial", err)
		}
		opts = append(opts, option.WithGRPCConn(conn), option.WithoutAuthentication())
	} else if file := strings.TrimSpace(p.settings.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, WrapError("provider.dial", err)
	}
	return client, nil
}

// Close releases the underlying client. The provider cannot be reused.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.client != nil {
		err := p.client.Close()
		p.client = nil
		return WrapError("provider.close", err)
	}
	return nil
}

// RunTransaction executes fn inside a Firestore transaction with bounded
// retries and a transaction-scoped timeout.
func (p *Provider) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *firestore.Transaction) error) error {
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	txCtx := ctx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > defaultTxTimeout {
		txCtx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	err = client.RunTransaction(txCtx, fn, firestore.MaxAttempts(defaultTxAttempts))
	return WrapError("transaction", err)
}

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)
