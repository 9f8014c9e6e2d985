// Package schema reads class and attribute definitions from the Active
// Directory schema naming context.
package schema
