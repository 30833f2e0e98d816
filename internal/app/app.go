// Package app is the composition root. It builds one instance of every
// long-lived component for the process and hands them to the commands.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/chrisapx/fif-client-sub000/internal/activity"
	"github.com/chrisapx/fif-client-sub000/internal/auth"
	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/config"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/navstate"
	"github.com/chrisapx/fif-client-sub000/internal/session"
	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config   *config.Config
	Store    storage.KeyValueStore
	API      *fineract.Client
	Auth     *auth.Service
	Codec    *navstate.Codec
	Activity *activity.Bus
	Session  *session.Manager
}

type options struct {
	store    storage.KeyValueStore
	clock    clockwork.Clock
	deviceID string
}

type Option func(*options)

// WithStore uses kv instead of opening the configured storage.
func WithStore(kv storage.KeyValueStore) Option {
	return func(o *options) {
		o.store = kv
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithDeviceID(deviceID string) Option {
	return func(o *options) {
		o.deviceID = deviceID
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {

	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.store
	if kv == nil {
		var err error
		kv, err = storage.Open(storage.Config{
			Driver:    cfg.Storage.Driver,
			Path:      cfg.Storage.Path,
			Namespace: cfg.GetStorageNamespace(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	api, err := fineract.NewClient(cfg.Fineract)
	if err != nil {
		return nil, err
	}

	codec, err := navstate.NewCodec(cfg.NavState.Secret, cfg.NavState.Salt)
	if err != nil {
		return nil, err
	}

	deviceID := o.deviceID
	if len(deviceID) == 0 {
		deviceID = common.GetDeviceIdentifier()
	}

	authService := auth.NewService(auth.NewStore(kv), api, deviceID)
	bus := activity.NewBus()

	var sessionOpts []session.Option
	if o.clock != nil {
		sessionOpts = append(sessionOpts, session.WithClock(o.clock))
	}

	a := &App{
		Config:   cfg,
		Store:    kv,
		API:      api,
		Auth:     authService,
		Codec:    codec,
		Activity: bus,
		Session:  session.NewManager(cfg.Session, bus, authService, sessionOpts...),
	}

	logrus.WithFields(logrus.Fields{
		"endpoint":  cfg.Fineract.Endpoint,
		"storage":   cfg.Storage.Driver,
		"namespace": cfg.GetStorageNamespace(),
	}).Debugln("Application initialized")

	return a, nil
}

// RequireLogin restores the saved login or returns auth.ErrNotAuthenticated.
func (a *App) RequireLogin() (*auth.User, error) {
	return a.Auth.Restore()
}

// RequireClient returns the client id of the logged in user.
func (a *App) RequireClient() (*auth.User, int64, error) {

	user, err := a.RequireLogin()
	if err != nil {
		return nil, 0, err
	}

	clientID, ok := user.ClientID()
	if !ok {
		return nil, 0, fmt.Errorf("user %s is not linked to a client", user.Username)
	}

	return user, clientID, nil
}

// Close releases storage. An active session is left alone; quitting is not
// a logout.
func (a *App) Close() error {
	if closer, ok := a.Store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
