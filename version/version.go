package version

// Version is the tool version. It is printed by the CLI and stamped into
// the metadata block of every converted file.
var Version = "0.2.0"
