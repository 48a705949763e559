package canopy

// Version is the library version. Release builds override it with
// -ldflags "-X github.com/aretw0/canopy.Version=v1.2.3".
var Version = "0.1.0-dev"
