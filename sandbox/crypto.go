package sandbox

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"crypto/subtle"
	"hash"
	"slices"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	sha256simd "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

const maxRandomBytes = 1024

var hashes = map[string]func() hash.Hash{
	"md5":       md5.New,
	"sha1":      sha1.New,
	"sha256":    sha256simd.New,
	"sha512":    sha512.New,
	"sha3-256":  sha3.New256,
	"sha3-512":  sha3.New512,
	"keccak256": sha3.NewLegacyKeccak256,
	"blake3":    func() hash.Hash { return blake3.New() },
}

// Crypto returns the "crypto" capability: hashing, HMAC and randomness
// helpers shaped after the Node.js crypto module. Digests and random bytes
// are returned as hex strings unless another encoding is requested.
//
//	crypto.createHash('sha256').update('abc').digest('hex')
//	crypto.createHmac('sha256', 'key').update('abc').digest('base64')
//	crypto.randomBytes(16)
//	crypto.randomUUID()
func Crypto() Capability {
	return Capability{
		Name: CryptoCapability,
		Install: func(vm *goja.Runtime) error {
			obj := vm.NewObject()
			for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
				"createHash": func(call goja.FunctionCall) goja.Value {
					return hashObject(vm, newHash(vm, call.Argument(0)))
				},
				"createHmac": func(call goja.FunctionCall) goja.Value {
					factory := hashFactory(vm, call.Argument(0))
					key := bytesArg(vm, call.Argument(1), optString(call.Argument(2)))
					return hashObject(vm, hmac.New(factory, key))
				},
				"randomBytes": func(call goja.FunctionCall) goja.Value {
					n := call.Argument(0).ToInteger()
					if n <= 0 || n > maxRandomBytes {
						throw(vm, "randomBytes size must be between 1 and %d", maxRandomBytes)
					}
					b := make([]byte, n)
					_, _ = rand.Read(b)
					return vm.ToValue(encodeBytes(vm, b, optString(call.Argument(1))))
				},
				"randomUUID": func(goja.FunctionCall) goja.Value {
					return vm.ToValue(uuid.NewString())
				},
				"timingSafeEqual": func(call goja.FunctionCall) goja.Value {
					a, b := []byte(call.Argument(0).String()), []byte(call.Argument(1).String())
					return vm.ToValue(subtle.ConstantTimeCompare(a, b) == 1)
				},
				"getHashes": func(goja.FunctionCall) goja.Value {
					names := make([]any, 0, len(hashes))
					for _, n := range hashNames() {
						names = append(names, n)
					}
					return vm.NewArray(names...)
				},
			} {
				if err := obj.Set(name, fn); err != nil {
					return err
				}
			}
			return vm.Set("crypto", obj)
		},
	}
}

func hashNames() []string {
	names := make([]string, 0, len(hashes))
	for n := range hashes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func hashFactory(vm *goja.Runtime, alg goja.Value) func() hash.Hash {
	factory, ok := hashes[strings.ToLower(optString(alg))]
	if !ok {
		throw(vm, "digest method not supported: %s", optString(alg))
	}
	return factory
}

func newHash(vm *goja.Runtime, alg goja.Value) hash.Hash {
	return hashFactory(vm, alg)()
}

// hashObject wraps h in an object with chainable update and a digest that
// may only be called once.
func hashObject(vm *goja.Runtime, h hash.Hash) *goja.Object {
	obj := vm.NewObject()
	finalized := false

	_ = obj.Set("update", func(call goja.FunctionCall) goja.Value {
		if finalized {
			throw(vm, "digest already called")
		}
		_, _ = h.Write(bytesArg(vm, call.Argument(0), optString(call.Argument(1))))
		return obj
	})
	_ = obj.Set("digest", func(call goja.FunctionCall) goja.Value {
		if finalized {
			throw(vm, "digest already called")
		}
		finalized = true
		return vm.ToValue(encodeBytes(vm, h.Sum(nil), optString(call.Argument(0))))
	})

	return obj
}
