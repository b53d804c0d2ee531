/*
Package field defines the record stored under every field key: the caller's
bytes plus TAI64N timestamps for creation and last modification.

The stored encoding is fixed and symmetric:

	u64le len(data) ‖ data ‖ created (12 B) ‖ modified (12 B)

Unmarshal is the exact inverse of Marshal; anything else — truncation,
trailing bytes, a malformed timestamp — fails with ErrCorruptRecord.

New sets created = modified; Update replaces the data and refreshes
modified while created stays immutable, so across the life of a key
modified is non-decreasing and never precedes created.
*/
package field
