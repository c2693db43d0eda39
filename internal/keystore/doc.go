// Package keystore proves a store/key password pair against a release
// keystore on disk. JKS stores are read with keystore-go; PKCS#12 stores with
// x/crypto/pkcs12, falling back to go-pkcs12 for PBES2 encryption.
package keystore
