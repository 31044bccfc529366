package vds

// Version is stored as metadata.package_version in every dataset this
// library creates.
const Version = "0.1.0"
