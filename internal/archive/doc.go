// Package archive bundles downloaded logs and ships the bundle to blob storage.
package archive
