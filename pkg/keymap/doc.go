/*
Package keymap maps terminal keyboard scan codes to keys.

Three keymap families are built in, embedded as YAML tables:

  - 3278-TYPEWRITER: the 3278 typewriter keyboard (also the default).
  - IBM-TYPEWRITER: IBM typewriter keyboards on InfoWindow terminals.
  - IBM-ENHANCED: IBM enhanced (122 key) keyboards.

Select picks one from a keyboard description by prefix. A Registry can replace the
built-in tables with user-supplied files of the same shape:

	name: 3278-TYPEWRITER
	keys:
	  - {scan: 0x21, key: "1"}
	  - {scan: 0x21, key: "!", shift: true}
*/
package keymap
