// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Starcache runs Starlark scripts with cached property support.

It executes a script with the following modules predeclared:

  - cache: cached properties and generators (cache.property, cache.generator,
    cache.stream, cache.wrap, cache.done)
  - types: script-defined classes routing attribute access through cached
    properties (types.define, types.delete)
  - feeds: web feed fetching producing one-shot item streams (feeds.fetch)
  - time: the standard Starlark time module
  - struct, module: the standard constructors

# Usage

	$ starcache [flags...] <script.star>

Use the -e flag to evaluate a single expression instead:

	$ starcache -e "cache.property(doc = 'example')"

For example, this script computes an expensive attribute once per instance:

	def area_getter(self):
	    print("computing")
	    return self.width * self.height

	Rect = types.define("Rect", {
	    "area": cache.property(fget = area_getter),
	})

	r = Rect(width = 3, height = 4)
	print(r.area)  # prints "computing", then 12
	print(r.area)  # prints 12, getter not invoked again
*/
package main

import (
	_ "embed"

	"go.astrophena.name/starcache/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
