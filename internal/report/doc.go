/*
Package report projects schema objects into flat records and renders them.

Supported formats:

  - HTMLFile: a standalone page with a sortable table
  - HTMLClipboard: the bare table, copied to the system clipboard
  - XMLFile: an Objects/Object/Property document
  - CSVFile: quoted comma-separated values with a header row

All formats consume the same sorted records; only the rendering differs.
*/
package report
