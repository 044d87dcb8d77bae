/*
Package evecache reads the machoNet cache artifacts written by the EVE Online
client: serialized remote call results stored as *.cache files.

We implement:

1. A decoder for the tagged object stream, producing a tree of Values
(scalars, tuples, lists, dicts, objects, and references to shared objects).

2. Rows: objects and rowset streams materialized against named Descriptors,
each column carrying an ADO type (DBTYPE_*).

3. A descriptor database on top of Bolt, which also remembers which artifacts
have already been seen.

4. A Manager that walks cache folders and decodes many artifacts in parallel.

# Technical Details

**Artifact layout.**
1. Start byte 0x7e.
2. Number of shared objects, uint32 LE.
3. Values, one after another, until the trailer.
4. Share map trailer: one uint32 LE slot id per shared object, in order of
first appearance.

**Values.**
Each value starts with a tag byte. The low six bits select the kind, bit 0x40
marks a shared object (only containers, objects and streams may carry it),
bit 0x80 is never valid. Multi-byte numbers are little-endian, lengths and
counts are uvarints.

**Shared objects.**
A shared object reserves its slot before its body is decoded and fills it
afterwards, so a reference always points to an earlier, complete value.
References hold slot id + 1; id 0 is invalid.

**Objects.**
Tag, descriptor name (a string value), then the fields as a tuple or list.

**Streams.**
Tag, sub-kind (0x01 tuple rows, 0x02 packed rows), descriptor name, row
count, the delimiter 0x2d 0x2d, then the rows.

**Packed rows.**
Byte length, zero-run-length packed bytes, then one value per variable-width
column. Unpacked, the row holds the fixed-width columns widest first, then one
bit per Bool column. Each packing opcode byte holds two nibbles, low first:
n < 8 copies n+1 literal bytes, n >= 8 stands for n-7 zero bytes.

**Substreams.**
Byte length followed by a complete nested artifact with its own share table,
holding exactly one value.
*/
package evecache
