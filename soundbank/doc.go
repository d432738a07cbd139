// Package soundbank manages the sound-library manifests that back a jam
// room: which instruments exist, which sounds each instrument may use, and
// the color tracks of that instrument render with.
//
// Manifests are JSON files in a configurable directory; a compiled-in
// default bank is used when no directory is given or the default file is
// absent. The default bank's instrument list is the fixed ordered pool the
// instrument allocator draws from.
package soundbank
