// Package auth keeps the client side authentication state: the credential
// token, the user profile and an optional biometric enrollment.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/sirupsen/logrus"
)

// Stored keys. Logout removes exactly TokenKey and UserKey; everything
// under BiometricPrefix survives it.
const (
	TokenKey = "auth.token"
	UserKey  = "auth.user"

	BiometricPrefix        = "biometric."
	BiometricEnrolledKey   = BiometricPrefix + "enrolled"
	BiometricUsernameKey   = BiometricPrefix + "username"
	BiometricCredentialKey = BiometricPrefix + "credential"
	BiometricDeviceKey     = BiometricPrefix + "device"
	BiometricEnrolledAtKey = BiometricPrefix + "enrolled_at"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNotEnrolled      = errors.New("biometric login is not enrolled")
)

// User is the profile saved at login.
type User struct {
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	ClientIDs  []int64   `json:"clients"`
	OfficeID   int64     `json:"officeId"`
	OfficeName string    `json:"officeName"`
	Roles      []string  `json:"roles,omitempty"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// ClientID returns the first client linked to the user.
func (u *User) ClientID() (int64, bool) {
	if u == nil || len(u.ClientIDs) == 0 {
		return 0, false
	}
	return u.ClientIDs[0], true
}

// Enrollment is a biometric quick login bound to one device.
type Enrollment struct {
	Username   string
	Credential string
	DeviceID   string
	EnrolledAt time.Time
}

type Store struct {
	kv storage.KeyValueStore
}

func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) SaveLogin(token string, user User) error {

	if len(token) == 0 {
		return errors.New("cannot save an empty token")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize user profile: %w", err)
	}

	if err := s.kv.Set(TokenKey, token); err != nil {
		return err
	}

	if err := s.kv.Set(UserKey, string(data)); err != nil {
		return err
	}

	logrus.WithField("user", user.Username).Debugln("Saved login")

	return nil
}

func (s *Store) Token() (string, bool) {
	token, ok := s.kv.Get(TokenKey)
	return token, ok && len(token) > 0
}

func (s *Store) User() (*User, error) {

	data, ok := s.kv.Get(UserKey)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to read user profile: %w", err)
	}

	return &user, nil
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Logout removes the token and the user profile. Biometric enrollment is
// left untouched.
func (s *Store) Logout() error {
	if err := s.kv.Delete(TokenKey, UserKey); err != nil {
		return fmt.Errorf("failed to clear login: %w", err)
	}
	logrus.Debugln("Cleared login")
	return nil
}

func (s *Store) EnrollBiometric(enrollment Enrollment) error {

	if len(enrollment.Username) == 0 || len(enrollment.Credential) == 0 {
		return errors.New("biometric enrollment needs a username and credential")
	}

	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}

	entries := []struct{ key, value string }{
		{BiometricUsernameKey, enrollment.Username},
		{BiometricCredentialKey, enrollment.Credential},
		{BiometricDeviceKey, enrollment.DeviceID},
		{BiometricEnrolledAtKey, enrollment.EnrolledAt.Format(time.RFC3339)},
		// Written last so a partial enrollment never reads as enrolled
		{BiometricEnrolledKey, strconv.FormatBool(true)},
	}

	for _, entry := range entries {
		if err := s.kv.Set(entry.key, entry.value); err != nil {
			return fmt.Errorf("failed to save biometric enrollment: %w", err)
		}
	}

	logrus.WithField("user", enrollment.Username).Infoln("Biometric login enrolled")

	return nil
}

func (s *Store) BiometricEnrollment() (*Enrollment, error) {

	enrolled, _ := s.kv.Get(BiometricEnrolledKey)
	if ok, _ := strconv.ParseBool(enrolled); !ok {
		return nil, ErrNotEnrolled
	}

	enrollment := &Enrollment{}
	enrollment.Username, _ = s.kv.Get(BiometricUsernameKey)
	enrollment.Credential, _ = s.kv.Get(BiometricCredentialKey)
	enrollment.DeviceID, _ = s.kv.Get(BiometricDeviceKey)

	if at, ok := s.kv.Get(BiometricEnrolledAtKey); ok {
		enrollment.EnrolledAt, _ = time.Parse(time.RFC3339, at)
	}

	if len(enrollment.Credential) == 0 {
		return nil, ErrNotEnrolled
	}

	return enrollment, nil
}

func (s *Store) IsBiometricEnrolled() bool {
	_, err := s.BiometricEnrollment()
	return err == nil
}

// ClearBiometric removes every biometric entry, including ones written by
// older versions.
func (s *Store) ClearBiometric() error {
	keys := storage.KeysWithPrefix(s.kv, BiometricPrefix)
	if err := s.kv.Delete(keys...); err != nil {
		return fmt.Errorf("failed to clear biometric enrollment: %w", err)
	}
	return nil
}
