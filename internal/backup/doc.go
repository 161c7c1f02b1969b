// Package backup writes and reads inventory archives.
//
// An archive is a zip file holding inventory.json (a versioned manifest and
// every item) and one images/<name> entry per item image. Export takes a
// snapshot of the record store; import extracts images first, then merges
// items into the record store using a conflict Strategy.
package backup
