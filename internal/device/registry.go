package device

import (
	"fmt"
	"sync"
)

// Role names the purpose a registered [Device] serves within the system.
type Role string

// RoleFilesystem is the role of the device holding the file system volume.
const RoleFilesystem Role = "filesystem"

// Registry maps device roles to their registered [Device].
type Registry struct {
	sync.RWMutex
	devices map[Role]*Device
}

// NewRegistry returns a pointer to a new, empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[Role]*Device),
	}
}

// Register records dev as the device serving the given role, replacing any
// previously registered device for that role.
func (r *Registry) Register(role Role, dev *Device) {
	r.Lock()
	defer r.Unlock()

	r.devices[role] = dev
}

// Get returns the device registered for the given role. A missing device
// surfaces [ErrNoDevice]; for [RoleFilesystem] the caller must treat that as
// fatal, as no file system can be served without it.
func (r *Registry) Get(role Role) (*Device, error) {
	r.RLock()
	defer r.RUnlock()

	dev, ok := r.devices[role]
	if !ok {
		return nil, fmt.Errorf("(device-registry) %w: role %q", ErrNoDevice, role)
	}

	return dev, nil
}

// CloseAll closes every registered device, retaining the first error.
func (r *Registry) CloseAll() error {
	r.Lock()
	defer r.Unlock()

	var firstErr error
	for role, dev := range r.devices {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.devices, role)
	}

	return firstErr
}
