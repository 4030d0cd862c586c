// Package directory provides key directory client implementations.
//
// The file-backed directory serves single-machine deployments and the demo
// CLI; production deployments implement keymanager.DirectoryClient against
// their hosted directory service instead.
package directory
