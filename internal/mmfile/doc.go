// Package mmfile memory-maps hive files so the reader can address the whole
// hive as one byte slice without loading it eagerly. Platforms without mmap
// fall back to reading the file into memory.
package mmfile
