package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/morphein/pattern"
)

func TestEnsureImport(t *testing.T) {
	tests := []struct {
		name string
		code string
		path string
		want string
	}{
		{
			name: "prepended when no imports exist",
			code: "const A = () => <Image src={x} />;\n",
			path: "next/image",
			want: "import Image from 'next/image';\nconst A = () => <Image src={x} />;\n",
		},
		{
			name: "appended after the last import",
			code: "import React from 'react';\nconst A = () => <Image src={x} />;\n",
			path: "next/image",
			want: "import React from 'react';\nimport Image from 'next/image';\nconst A = () => <Image src={x} />;\n",
		},
		{
			name: "existing import left alone",
			code: "import Image from 'next/image';\nconst A = () => <Image src={x} />;\n",
			path: "next/image",
			want: "import Image from 'next/image';\nconst A = () => <Image src={x} />;\n",
		},
		{
			name: "directive stays first",
			code: "'use strict';\nconst A = 1;\n",
			path: "next/link",
			want: "'use strict';\nimport Link from 'next/link';\nconst A = 1;\n",
		},
		{
			name: "unknown path imported for side effects",
			code: "const a = 1;\n",
			path: "reflect-metadata",
			want: "import 'reflect-metadata';\nconst a = 1;\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pattern.EnsureImport(tc.code, tc.path))
		})
	}
}
