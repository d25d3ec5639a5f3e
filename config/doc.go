// Package config loads the locally persisted state the core consumes
// read-only: the user's relay list and the cached view/edit keys per form.
// Writing this state (settings screens, key exchange) happens outside the
// core; this package only parses what is already on disk.
package config
