package common

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

const deviceAppID = "fif-client"

// GetDeviceIdentifier returns a stable identifier for this machine, hashed
// with the application id so the raw machine id never leaves the host.
// Biometric enrollments are bound to it.
func GetDeviceIdentifier() string {

	id, err := machineid.ProtectedID(deviceAppID)
	if err != nil {
		// Ephemeral fallback; enrollment on this host will not survive a restart
		return uuid.NewString()
	}

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
