/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package shapes

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(2, 3)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, 2, s.Dim(0))
	assert.Equal(t, 3, s.Dim(-1))

	assert.True(t, Scalar().IsScalar())
	assert.Equal(t, 1, Scalar().Size())

	exception := exceptions.Try(func() { Make(2, 0) })
	require.NotNil(t, exception, "Make with zero dimension should panic")
}

func TestEqualAndClone(t *testing.T) {
	s := Make(4, 5)
	s2 := s.Clone()
	assert.True(t, s.Equal(s2))
	s2.Dimensions[0] = 7
	assert.False(t, s.Equal(s2))
	assert.False(t, s.Equal(Make(4)))
	assert.True(t, Scalar().Equal(Scalar()))
}

func TestDimOutOfBounds(t *testing.T) {
	s := Make(3)
	exception := exceptions.Try(func() { s.Dim(1) })
	require.NotNil(t, exception)
	exception = exceptions.Try(func() { s.Dim(-2) })
	require.NotNil(t, exception)
}

func TestGobSerialization(t *testing.T) {
	s := Make(3, 7, 2)
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	require.NoError(t, s.GobSerialize(enc))

	dec := gob.NewDecoder(&buf)
	s2, err := GobDeserialize(dec)
	require.NoError(t, err)
	assert.True(t, s.Equal(s2))
}
