package utils

import "errors"

// ErrAlreadyRunning is returned by AcquireSingleInstance when another
// process holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceName is the lock name used by the recorder binary.
const InstanceName = "Local\\" + AppName + "-recorder"
