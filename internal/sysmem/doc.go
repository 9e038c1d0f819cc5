// Package sysmem reports physical and virtual memory figures used to size
// Auto-policy matrices.
package sysmem
