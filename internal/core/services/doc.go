// Package services implements the driving port interfaces.
// Services contain the core business logic: listing and resolving
// documents, extracting their text, paginating and filtering it, and
// progressively registering the tree in the background.
//
// Services are pure Go with no CGO or external dependencies; all I/O
// goes through the driven ports.
package services
