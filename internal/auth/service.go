package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/sirupsen/logrus"
)

var ErrDeviceMismatch = errors.New("biometric enrollment belongs to another device")

// Authenticator is the part of the banking API the service needs.
type Authenticator interface {
	Authenticate(ctx context.Context, username string, password string) (*fineract.AuthResponse, error)
	SetToken(token string)
}

// Service logs users in against the banking API and keeps the resulting
// state in a Store.
type Service struct {
	store    *Store
	api      Authenticator
	deviceID string
}

func NewService(store *Store, api Authenticator, deviceID string) *Service {
	return &Service{
		store:    store,
		api:      api,
		deviceID: deviceID,
	}
}

func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) Login(ctx context.Context, username string, password string) (*User, error) {

	username = strings.TrimSpace(username)

	resp, err := s.api.Authenticate(ctx, username, password)
	if err != nil {
		logrus.WithError(err).WithField("user", username).Warnln("Login failed")
		return nil, fmt.Errorf("login failed: %w", err)
	}

	user := userFromResponse(resp)

	if err := s.store.SaveLogin(resp.AuthenticationKey, user); err != nil {
		return nil, err
	}

	s.api.SetToken(resp.AuthenticationKey)

	logrus.WithFields(logrus.Fields{
		"user":    user.Username,
		"clients": len(user.ClientIDs),
	}).Infoln("Logged in")

	return &user, nil
}

// LoginWithBiometric signs in again with the credential captured at
// enrollment. The enrollment only works on the device that created it.
func (s *Service) LoginWithBiometric(ctx context.Context) (*User, error) {

	enrollment, err := s.store.BiometricEnrollment()
	if err != nil {
		return nil, err
	}

	if len(enrollment.DeviceID) > 0 && enrollment.DeviceID != s.deviceID {
		return nil, ErrDeviceMismatch
	}

	username, password, err := decodeCredential(enrollment.Credential)
	if err != nil {
		return nil, err
	}

	return s.Login(ctx, username, password)
}

// EnrollBiometric binds the currently stored credential to this device.
func (s *Service) EnrollBiometric() error {

	token, ok := s.store.Token()
	if !ok {
		return ErrNotAuthenticated
	}

	user, err := s.store.User()
	if err != nil {
		return err
	}

	if _, _, err := decodeCredential(token); err != nil {
		return err
	}

	return s.store.EnrollBiometric(Enrollment{
		Username:   user.Username,
		Credential: token,
		DeviceID:   s.deviceID,
		EnrolledAt: time.Now().UTC(),
	})
}

// Restore hands a previously saved token to the API client.
func (s *Service) Restore() (*User, error) {

	token, ok := s.store.Token()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	user, err := s.store.User()
	if err != nil {
		return nil, err
	}

	s.api.SetToken(token)
	return user, nil
}

// Logout clears the stored login and the in-memory token. It is the
// teardown used by the session manager.
func (s *Service) Logout() error {
	s.api.SetToken("")
	return s.store.Logout()
}

func userFromResponse(resp *fineract.AuthResponse) User {

	roles := make([]string, 0, len(resp.Roles))
	for _, role := range resp.Roles {
		roles = append(roles, role.Name)
	}

	return User{
		UserID:     resp.UserID,
		Username:   resp.Username,
		ClientIDs:  resp.Clients,
		OfficeID:   resp.OfficeID,
		OfficeName: resp.OfficeName,
		Roles:      roles,
		LoggedInAt: time.Now().UTC(),
	}
}

// decodeCredential splits a base64 "username:password" authentication key.
func decodeCredential(credential string) (string, string, error) {

	data, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return "", "", fmt.Errorf("invalid stored credential: %w", err)
	}

	username, password, ok := strings.Cut(string(data), ":")
	if !ok || len(username) == 0 {
		return "", "", errors.New("invalid stored credential")
	}

	return username, password, nil
}
