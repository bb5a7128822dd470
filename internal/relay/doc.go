// Package relay retrieves link-preview metadata (Open Graph title, description,
// image, and a plain-text excerpt) for Instagram post URLs by walking an ordered
// ladder of upstream sources until one yields useful content.
package relay
