// Package sale defines the retail transaction record and its fingerprint.
//
// A fingerprint is the SHA-256 digest of a record's canonical encoding. The
// canonical encoding is the hash preimage contract for every fingerprint the
// system has ever produced or anchored, so it must never change:
//
//	{"amount":925,"items":[{"id":"1","name":"Coffee","price":350,"quantity":2}],
//	 "operatorId":"op-1","paymentMethod":"cash","timestamp":1700000000000}
//
// Keys are sorted at every level, output is compact, HTML characters are not
// escaped and there is no trailing newline. Monetary values are integer minor
// units (cents); timestamps are Unix milliseconds. The record id and item
// categories are not part of the preimage.
package sale
