package vmem

import "golang.org/x/sys/unix"

// Kernels before 4.17 ignore MAP_FIXED_NOREPLACE and treat the address as a
// hint.
const _MAP_FIXED_NOREPLACE = unix.MAP_FIXED_NOREPLACE
