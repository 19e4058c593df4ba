// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/crypto"
	"github.com/lukasdietrich/briefsend/internal/log"
)

func init() {
	viper.SetDefault("storage.cache.foldername", filepath.Join(os.TempDir(), "briefsend"))
	viper.SetDefault("storage.cache.memorylimit", "1mb")
}

// CacheOptions configures where and when rendered messages are evaded to disk.
type CacheOptions struct {
	Foldername  string
	MemoryLimit int64
}

// CacheOptionsFromViper reads the CacheOptions from the global configuration.
func CacheOptionsFromViper() CacheOptions {
	return CacheOptions{
		Foldername:  viper.GetString("storage.cache.foldername"),
		MemoryLimit: int64(viper.GetSizeInBytes("storage.cache.memorylimit")),
	}
}

// Cache holds rendered messages between building and sending them. Small entries are kept in
// memory, entries reaching the memory limit are written to a file.
type Cache interface {
	// NewWriter starts a new entry, that is filled by writing to it.
	NewWriter(ctx context.Context) EntryWriter
}

// EntryWriter fills a single cache entry.
type EntryWriter interface {
	io.Writer
	// Finish completes the entry. If any write failed, the partial entry is released and the
	// error is returned.
	Finish() (CacheEntry, error)
}

// CacheEntry is a completed entry, that can be read any number of times until it is released.
type CacheEntry interface {
	Reader() (io.Reader, error)
	Size() int64
	Release(ctx context.Context) error
}

type cache struct {
	fs          afero.Fs
	idGen       crypto.IDGenerator
	memoryLimit int64
}

func NewCache(fs afero.Fs, idGen crypto.IDGenerator, options CacheOptions) (Cache, error) {
	if err := fs.MkdirAll(options.Foldername, 0700); err != nil {
		return nil, err
	}

	return &cache{
		fs:          afero.NewBasePathFs(fs, options.Foldername),
		idGen:       idGen,
		memoryLimit: options.MemoryLimit,
	}, nil
}

func (c *cache) NewWriter(ctx context.Context) EntryWriter {
	return &cacheWriter{cache: c, ctx: ctx}
}

type cacheWriter struct {
	cache *cache
	ctx   context.Context

	memory bytes.Buffer
	file   afero.File
	id     string
	size   int64
	err    error
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	if w.file == nil && int64(w.memory.Len()+len(b)) >= w.cache.memoryLimit {
		if err := w.evade(); err != nil {
			w.err = err
			return 0, err
		}
	}

	var (
		n   int
		err error
	)

	if w.file != nil {
		n, err = w.file.Write(b)
	} else {
		n, err = w.memory.Write(b)
	}

	w.size += int64(n)
	w.err = err

	return n, err
}

func (w *cacheWriter) evade() error {
	id, err := w.cache.idGen.GenerateID()
	if err != nil {
		return err
	}

	file, err := w.cache.fs.Create(id)
	if err != nil {
		return err
	}

	log.DebugContext(w.ctx).
		Str("filename", id).
		Int64("memoryLimit", w.cache.memoryLimit).
		Msg("cache entry exceeding size limit, evading to file")

	w.id = id
	w.file = file

	if _, err := file.Write(w.memory.Bytes()); err != nil {
		return err
	}

	w.memory.Reset()
	return nil
}

func (w *cacheWriter) Finish() (CacheEntry, error) {
	if w.file == nil {
		if w.err != nil {
			return nil, w.err
		}

		return memoryEntry{data: w.memory.Bytes()}, nil
	}

	entry := fileEntry{fs: w.cache.fs, id: w.id, file: w.file, size: w.size}

	if w.err != nil {
		log.WarnContext(w.ctx).
			Str("filename", w.id).
			Err(w.err).
			Msg("could not write to cache file")

		if err := entry.Release(w.ctx); err != nil {
			log.WarnContext(w.ctx).
				Str("filename", w.id).
				Err(err).
				Msg("could not remove partial cache file")
		}

		return nil, w.err
	}

	return entry, nil
}

type memoryEntry struct {
	data []byte
}

func (e memoryEntry) Reader() (io.Reader, error) {
	return bytes.NewReader(e.data), nil
}

func (e memoryEntry) Size() int64 {
	return int64(len(e.data))
}

func (memoryEntry) Release(context.Context) error {
	return nil
}

type fileEntry struct {
	fs   afero.Fs
	id   string
	file afero.File
	size int64
}

func (e fileEntry) Reader() (io.Reader, error) {
	if _, err := e.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return e.file, nil
}

func (e fileEntry) Size() int64 {
	return e.size
}

func (e fileEntry) Release(ctx context.Context) error {
	log.DebugContext(ctx).
		Str("filename", e.id).
		Msg("removing cache file")

	if err := e.file.Close(); err != nil {
		return err
	}

	return e.fs.Remove(e.id)
}
