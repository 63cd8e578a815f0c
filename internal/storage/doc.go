/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the local export library.
// Exported images are written as files into the library directory; an embedded SQLite index at
// <dir>/.gothumb/index.sqlite records each export together with the scene it was rendered from and a small preview.
// The index is derived data: when it is corrupt it is backed up and rebuilt from the files on disk.
package storage
