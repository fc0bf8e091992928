package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrIdentityNotFound is returned when an identity link cannot be found
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrDuplicateIdentity is returned when an insert collides with the
	// (provider, external_id) unique constraint; e.g. two callbacks for the
	// same provider account racing to create the link
	ErrDuplicateIdentity = errors.New("identity already linked")

	// ErrDuplicateEmail is returned when a user insert collides with the
	// email unique constraint
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrPostNotFound is returned when a post cannot be found
	ErrPostNotFound = errors.New("post not found")

	// ErrHashtagNotFound is returned when a hashtag cannot be found
	ErrHashtagNotFound = errors.New("hashtag not found")

	// ErrProjectNotFound is returned when a project cannot be found
	ErrProjectNotFound = errors.New("project not found")

	// ErrAlreadyLinked is returned when a project scope attachment
	// (hashtag or creator) already exists
	ErrAlreadyLinked = errors.New("already linked to project")
)
