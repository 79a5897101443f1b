// Package ownership tracks which address currently holds each live record.
//
// Both implementations return sentinel.ErrNotFound for records that were
// never created or have been burned, sentinel.ErrConflict when creating a
// record that already has a holder, and sentinel.ErrInvalidState when a
// transfer names the wrong current holder.
package ownership
