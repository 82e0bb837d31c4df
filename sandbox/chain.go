package sandbox

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/dop251/goja"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Chain returns the optional "ethers" capability with Ethereum helpers:
// hashing, address derivation and checksums, message signing and recovery,
// unit conversion and base58. It has no provider, so scripts cannot reach
// a node; byte values are exchanged as 0x-prefixed hex strings and big
// integers as decimal strings.
//
// The same object is also reachable as ethers.utils.
func Chain() Capability {
	return Capability{
		Name:     ChainCapability,
		Optional: true,
		Install: func(vm *goja.Runtime) error {
			c := &chain{vm: vm}
			obj := vm.NewObject()
			for name, fn := range c.functions() {
				if err := obj.Set(name, fn); err != nil {
					return err
				}
			}
			if err := obj.Set("ZeroAddress", zeroAddress); err != nil {
				return err
			}
			if err := obj.Set("WeiPerEther", "1000000000000000000"); err != nil {
				return err
			}
			if err := obj.Set("utils", obj); err != nil {
				return err
			}
			return vm.Set("ethers", obj)
		},
	}
}

type chain struct {
	vm *goja.Runtime
}

func (c *chain) functions() map[string]func(goja.FunctionCall) goja.Value {
	return map[string]func(goja.FunctionCall) goja.Value{
		"keccak256":          c.keccak256,
		"id":                 c.id,
		"toUtf8Bytes":        c.toUtf8Bytes,
		"toUtf8String":       c.toUtf8String,
		"hexlify":            c.hexlify,
		"isHexString":        c.isHexString,
		"getAddress":         c.getAddress,
		"isAddress":          c.isAddress,
		"computeAddress":     c.computeAddress,
		"hashMessage":        c.hashMessage,
		"signMessage":        c.signMessage,
		"verifyMessage":      c.verifyMessage,
		"createRandomWallet": c.createRandomWallet,
		"parseUnits":         c.parseUnits,
		"formatUnits":        c.formatUnits,
		"parseEther":         c.parseEther,
		"formatEther":        c.formatEther,
		"encodeBase58":       c.encodeBase58,
		"decodeBase58":       c.decodeBase58,
	}
}

func keccak(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	return h.Sum(nil)
}

func hex0x(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func (c *chain) str(s string) goja.Value {
	return c.vm.ToValue(s)
}

// hexArg decodes a 0x-prefixed hex string argument.
func (c *chain) hexArg(v goja.Value) []byte {
	s := optString(v)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		throw(c.vm, "invalid BytesLike value: %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		throw(c.vm, "invalid BytesLike value: %q", s)
	}
	return b
}

func (c *chain) keccak256(call goja.FunctionCall) goja.Value {
	return c.str(hex0x(keccak(c.hexArg(call.Argument(0)))))
}

func (c *chain) id(call goja.FunctionCall) goja.Value {
	return c.str(hex0x(keccak([]byte(optString(call.Argument(0))))))
}

func (c *chain) toUtf8Bytes(call goja.FunctionCall) goja.Value {
	return c.str(hex0x([]byte(optString(call.Argument(0)))))
}

func (c *chain) toUtf8String(call goja.FunctionCall) goja.Value {
	return c.str(string(c.hexArg(call.Argument(0))))
}

// hexlify accepts a hex string or a non-negative integer.
func (c *chain) hexlify(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0)
	if n, ok := toFloat(arg.Export()); ok {
		if n < 0 || n != float64(int64(n)) {
			throw(c.vm, "invalid hexlify value: %v", n)
		}
		s := strconv.FormatInt(int64(n), 16)
		if len(s)%2 == 1 {
			s = "0" + s
		}
		return c.str("0x" + s)
	}
	return c.str(hex0x(c.hexArg(arg)))
}

func (c *chain) isHexString(call goja.FunctionCall) goja.Value {
	s := optString(call.Argument(0))
	if !strings.HasPrefix(s, "0x") {
		return c.vm.ToValue(false)
	}
	for _, r := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return c.vm.ToValue(false)
		}
	}
	return c.vm.ToValue(true)
}

func (c *chain) getAddress(call goja.FunctionCall) goja.Value {
	addr, err := checksumAddress(optString(call.Argument(0)))
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(addr)
}

func (c *chain) isAddress(call goja.FunctionCall) goja.Value {
	_, err := checksumAddress(optString(call.Argument(0)))
	return c.vm.ToValue(err == nil)
}

// computeAddress derives the address for a private key (32 bytes) or a
// public key (33 or 65 bytes).
func (c *chain) computeAddress(call goja.FunctionCall) goja.Value {
	key := c.hexArg(call.Argument(0))

	var pub *secp256k1.PublicKey
	switch len(key) {
	case 32:
		pub = secp256k1.PrivKeyFromBytes(key).PubKey()
	case 33, 65:
		p, err := secp256k1.ParsePubKey(key)
		if err != nil {
			throw(c.vm, "invalid public key: %s", err)
		}
		pub = p
	default:
		throw(c.vm, "invalid key length: %d", len(key))
	}

	return c.str(pubKeyAddress(pub))
}

func (c *chain) hashMessage(call goja.FunctionCall) goja.Value {
	return c.str(hex0x(messageHash([]byte(optString(call.Argument(0))))))
}

// signMessage(privateKey, message) returns an EIP-191 personal signature
// as 65 bytes r || s || v with v in {27, 28}.
func (c *chain) signMessage(call goja.FunctionCall) goja.Value {
	key := c.hexArg(call.Argument(0))
	if len(key) != 32 {
		throw(c.vm, "invalid private key length: %d", len(key))
	}
	priv := secp256k1.PrivKeyFromBytes(key)
	compact := ecdsa.SignCompact(priv, messageHash([]byte(optString(call.Argument(1)))), false)

	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return c.str(hex0x(sig))
}

// verifyMessage(message, signature) returns the signer's address.
func (c *chain) verifyMessage(call goja.FunctionCall) goja.Value {
	addr, err := recoverAddress([]byte(optString(call.Argument(0))), c.hexArg(call.Argument(1)))
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(addr)
}

func (c *chain) createRandomWallet(goja.FunctionCall) goja.Value {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		throw(c.vm, "generate key: %s", err)
	}
	pub := priv.PubKey()
	return c.vm.ToValue(map[string]any{
		"privateKey": hex0x(priv.Serialize()),
		"publicKey":  hex0x(pub.SerializeUncompressed()),
		"address":    pubKeyAddress(pub),
	})
}

func (c *chain) parseUnits(call goja.FunctionCall) goja.Value {
	v, err := parseUnits(optString(call.Argument(0)), c.decimals(call.Argument(1)))
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(v.String())
}

func (c *chain) formatUnits(call goja.FunctionCall) goja.Value {
	v, err := formatUnits(optString(call.Argument(0)), c.decimals(call.Argument(1)))
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(v)
}

func (c *chain) parseEther(call goja.FunctionCall) goja.Value {
	v, err := parseUnits(optString(call.Argument(0)), 18)
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(v.String())
}

func (c *chain) formatEther(call goja.FunctionCall) goja.Value {
	v, err := formatUnits(optString(call.Argument(0)), 18)
	if err != nil {
		throw(c.vm, "%s", err)
	}
	return c.str(v)
}

// decimals reads a unit argument: a number of decimals or a unit name.
func (c *chain) decimals(v goja.Value) int {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return 18
	}
	if n, ok := toFloat(v.Export()); ok {
		if n < 0 || n > 77 || n != float64(int(n)) {
			throw(c.vm, "invalid decimals: %v", n)
		}
		return int(n)
	}
	switch strings.ToLower(v.String()) {
	case "wei":
		return 0
	case "kwei":
		return 3
	case "mwei":
		return 6
	case "gwei":
		return 9
	case "szabo":
		return 12
	case "finney":
		return 15
	case "ether":
		return 18
	default:
		throw(c.vm, "invalid unit: %s", v.String())
	}
	return 0
}

func (c *chain) encodeBase58(call goja.FunctionCall) goja.Value {
	return c.str(base58.Encode(c.hexArg(call.Argument(0))))
}

func (c *chain) decodeBase58(call goja.FunctionCall) goja.Value {
	b, err := base58.Decode(optString(call.Argument(0)))
	if err != nil {
		throw(c.vm, "invalid base58 string: %s", err)
	}
	return c.str(hex0x(b))
}

func messageHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return keccak([]byte(prefix), msg)
}

func pubKeyAddress(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()
	addr, _ := checksumAddress(hex0x(keccak(raw[1:])[12:]))
	return addr
}

func recoverAddress(msg, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("invalid signature length: %d", len(sig))
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, messageHash(msg))
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}
	return pubKeyAddress(pub), nil
}

// checksumAddress validates a 20-byte hex address and returns its EIP-55
// mixed-case form. Mixed-case input must already carry a valid checksum.
func checksumAddress(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("invalid address: %q", s)
	}
	body := s[2:]
	if len(body) != 40 {
		return "", fmt.Errorf("invalid address: %q", s)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("invalid address: %q", s)
	}

	lower := strings.ToLower(body)
	hash := keccak([]byte(lower))

	out := []byte(lower)
	for i, ch := range out {
		if ch < 'a' || ch > 'f' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = ch - 'a' + 'A'
		}
	}
	checksummed := "0x" + string(out)

	mixed := body != lower && body != strings.ToUpper(body)
	if mixed && body != string(out) {
		return "", errors.New("bad address checksum")
	}
	return checksummed, nil
}

func parseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	neg := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("too many decimals for format: %s", value)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value: %s", value)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func formatUnits(value string, decimals int) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return "", fmt.Errorf("invalid integer value: %s", value)
	}

	neg := n.Sign() < 0
	n.Abs(n)

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(n, base, new(big.Int))

	frac := ""
	if decimals > 0 {
		digits := rem.String()
		frac = strings.Repeat("0", decimals-len(digits)) + digits
		frac = strings.TrimRight(frac, "0")
	}
	if frac == "" {
		frac = "0"
	}

	out := whole.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out, nil
}
