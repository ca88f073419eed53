// Package filter implements the row-level filter predicate language of
// feature-type filters.
//
// A filter expression is a boolean combination of comparisons over
// feature fields, literals and session variables:
//
//	[owner] = {user}
//	[status] <> 'retired' & [zone] in ('north', 'south')
//	[priority] >= 3 | [escalated] = true
//
// Field references are written [name], session variables {name}.
// Operators: = <> < <= > >= like ilike in, combined with & and | and
// parentheses. String literals use single quotes, like/ilike accept %
// and _ wildcards.
//
// Expressions are parsed once, when a rights snapshot is built, into an
// immutable Predicate that can be evaluated against feature field maps
// under a session-variable environment.
package filter
