// Package api implements the HTTP handlers for the card catalog: account
// registration and login, session inspection, user profiles with an
// ownership-gated email field, and cursor-paginated card listings.
package api
