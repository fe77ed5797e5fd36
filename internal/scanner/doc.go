// Package scanner walks library roots and indexes the images it
// finds. Discovery streams file paths into a bounded worker pool;
// each worker reads the file, renders a thumbnail, writes both byte
// streams to the object store, and upserts the metadata document.
// Progress counters are live from the moment discovery starts, and a
// completed scan reaps documents whose files vanished from disk.
package scanner
