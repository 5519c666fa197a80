// Command walletcli is the borrower/lender-side counterpart to hubd: it
// derives contract keys, registers and logs in against the hub's PAKE
// handshake, and builds the collateral descriptor for a given contract
// index. It shares the crypto, auth and collateral packages with hubd
// rather than re-implementing them.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/satlend/hub/auth"
	"github.com/satlend/hub/cmd/internal/passphrase"
	"github.com/satlend/hub/collateral"
	"github.com/satlend/hub/crypto"
	"github.com/satlend/hub/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "register":
		err = runRegister(os.Args[2:])
	case "login":
		err = runLogin(os.Args[2:])
	case "address":
		err = runAddress(os.Args[2:])
	case "recover":
		err = runRecover(os.Args[2:])
	case "fallback":
		err = runFallback(os.Args[2:])
	case "identity":
		err = runIdentity(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "walletcli:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: walletcli <init|register|login|address|recover|fallback|identity> [flags]")
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "satlend-walletcli", "cache.bolt")
}

// runInit generates a fresh mnemonic, derives the wallet's Xpub and prints
// the mnemonic once for the operator to write down; nothing is persisted
// locally in plaintext.
func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	network := fs.String("network", "testnet", "mainnet|testnet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mnemonic, err := crypto.GenerateMnemonic()
	if err != nil {
		return fmt.Errorf("generate mnemonic: %w", err)
	}
	seed, err := crypto.MnemonicSeed(mnemonic, "")
	if err != nil {
		return fmt.Errorf("derive seed: %w", err)
	}
	tree, err := crypto.NewKeyTreeFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive key tree: %w", err)
	}
	fmt.Println("mnemonic (write this down, it is never shown again):")
	fmt.Println(mnemonic)
	fmt.Println("xpub:", tree.Xpub())
	fmt.Println("network:", *network)
	return nil
}

// runRegister registers a new PAKE identity directly against the hub's
// Postgres store. In production this call would cross the network to
// hubd's auth RPC surface; invoked locally here
// it exercises the same auth.Server code hubd runs in-process.
func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN for the hub's credential store")
	email := fs.String("email", "", "account email")
	network := fs.String("network", "testnet", "mainnet|testnet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" || *email == "" {
		return fmt.Errorf("--dsn and --email are required")
	}

	passSrc := passphrase.NewSource("WALLETCLI_PASSWORD")
	password, err := passSrc.Get()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	mnemonic, err := crypto.GenerateMnemonic()
	if err != nil {
		return fmt.Errorf("generate mnemonic: %w", err)
	}
	seed, err := crypto.MnemonicSeed(mnemonic, "")
	if err != nil {
		return fmt.Errorf("derive seed: %w", err)
	}
	tree, err := crypto.NewKeyTreeFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive key tree: %w", err)
	}
	ciphertext, err := crypto.EncryptMnemonicBackup(mnemonic, password)
	if err != nil {
		return fmt.Errorf("encrypt backup: %w", err)
	}

	salt, verifier, err := auth.ComputeVerifier(password)
	if err != nil {
		return fmt.Errorf("compute srp verifier: %w", err)
	}

	db, err := postgres.Connect(*dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	credStore := postgres.NewCredentialStore(db)
	backupStore := postgres.NewWalletBackupStore(db)

	jwtSecret := make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		return fmt.Errorf("generate local jwt secret: %w", err)
	}
	server, err := auth.NewServer(credStore, backupStore, jwtSecret)
	if err != nil {
		return fmt.Errorf("construct auth server: %w", err)
	}

	if err := server.Register(*email, salt, verifier, auth.WalletBackup{
		Ciphertext: ciphertext,
		Network:    *network,
		Xpub:       tree.Xpub(),
	}); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Println("registered", *email)
	fmt.Println("mnemonic (write this down, it is never shown again):")
	fmt.Println(mnemonic)
	return nil
}

// runLogin completes a full SRP-6a round trip against the hub's Postgres
// store and caches the resulting Xpub locally.
func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN for the hub's credential store")
	email := fs.String("email", "", "account email")
	cachePath := fs.String("cache", defaultCachePath(), "local wallet cache path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" || *email == "" {
		return fmt.Errorf("--dsn and --email are required")
	}

	password, err := passphrase.NewSource("WALLETCLI_PASSWORD").Get()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	db, err := postgres.Connect(*dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	credStore := postgres.NewCredentialStore(db)
	backupStore := postgres.NewWalletBackupStore(db)
	jwtSecret := make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		return fmt.Errorf("generate local jwt secret: %w", err)
	}
	server, err := auth.NewServer(credStore, backupStore, jwtSecret)
	if err != nil {
		return fmt.Errorf("construct auth server: %w", err)
	}

	client, err := auth.NewClientLogin(*email, password)
	if err != nil {
		return fmt.Errorf("start client session: %w", err)
	}
	salt, B, err := server.LoginStep1(*email)
	if err != nil {
		return fmt.Errorf("login step 1: %w", err)
	}
	m1, err := client.ComputeM1(salt, B)
	if err != nil {
		return fmt.Errorf("compute client proof: %w", err)
	}
	result, err := server.LoginStep2(*email, client.A(), m1)
	if err != nil {
		return fmt.Errorf("login step 2: %w", err)
	}
	if !client.VerifyM2(result.M2) {
		return fmt.Errorf("server proof failed verification")
	}

	plaintext, err := crypto.DecryptMnemonicBackup(result.WalletBackup.Ciphertext, password)
	if err != nil {
		return fmt.Errorf("decrypt wallet backup: %w", err)
	}
	mnemonic := strings.Fields(plaintext)
	if len(mnemonic) < 12 {
		return fmt.Errorf("decrypted backup is not a well-formed mnemonic")
	}
	seed, err := crypto.MnemonicSeed(strings.Join(mnemonic[:12], " "), "")
	if err != nil {
		return fmt.Errorf("derive seed: %w", err)
	}
	tree, err := crypto.NewKeyTreeFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive key tree: %w", err)
	}
	if tree.Xpub() != result.WalletBackup.Xpub {
		return fmt.Errorf("derived xpub does not match wallet backup record")
	}

	cache, err := openStore(*cachePath)
	if err != nil {
		return fmt.Errorf("open local cache: %w", err)
	}
	defer cache.Close()
	if err := cache.Put(walletRecord{Email: *email, Xpub: tree.Xpub(), Network: result.WalletBackup.Network}); err != nil {
		return fmt.Errorf("cache wallet record: %w", err)
	}

	fmt.Println("login successful, auth token:", result.AuthToken)
	return nil
}

// runAddress derives this party's contract key at contractIndex and builds
// the 2-of-3 (or legacy 2-of-4) descriptor given the counterparties' Xpubs,
// printing the resulting P2WSH address.
func runAddress(args []string) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	cachePath := fs.String("cache", defaultCachePath(), "local wallet cache path")
	email := fs.String("email", "", "cached account email")
	contractIndex := fs.Uint("contract-index", 0, "contract derivation index")
	counterpartyXpub := fs.String("counterparty-xpub", "", "counterparty's Xpub")
	hubXpub := fs.String("hub-xpub", "", "hub's Xpub")
	legacy := fs.Bool("legacy", false, "build the legacy 2-of-4 descriptor")
	fallbackXpub := fs.String("fallback-xpub", "", "legacy-only fallback Xpub")
	mainnet := fs.Bool("mainnet", false, "derive mainnet keys/address instead of testnet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *counterpartyXpub == "" || *hubXpub == "" {
		return fmt.Errorf("--email, --counterparty-xpub and --hub-xpub are required")
	}

	cache, err := openStore(*cachePath)
	if err != nil {
		return fmt.Errorf("open local cache: %w", err)
	}
	defer cache.Close()
	rec, err := cache.Get(*email)
	if err != nil {
		return fmt.Errorf("no cached wallet for %s, run login first: %w", *email, err)
	}

	net := crypto.Testnet
	params := &chaincfg.TestNet3Params
	if *mainnet {
		net = crypto.Mainnet
		params = &chaincfg.MainNetParams
	}

	selfTree, err := crypto.NewKeyTreeFromXpub(rec.Xpub)
	if err != nil {
		return fmt.Errorf("parse cached xpub: %w", err)
	}
	counterpartyTree, err := crypto.NewKeyTreeFromXpub(*counterpartyXpub)
	if err != nil {
		return fmt.Errorf("parse counterparty xpub: %w", err)
	}
	hubTree, err := crypto.NewKeyTreeFromXpub(*hubXpub)
	if err != nil {
		return fmt.Errorf("parse hub xpub: %w", err)
	}

	idx := uint32(*contractIndex)
	pubKeys, threshold, err := derivePubKeys(net, idx, *legacy, selfTree, counterpartyTree, hubTree, *fallbackXpub)
	if err != nil {
		return err
	}

	desc, err := collateral.New(threshold, pubKeys, params)
	if err != nil {
		return fmt.Errorf("build descriptor: %w", err)
	}
	fmt.Println("contract address:", desc.Address.EncodeAddress())
	fmt.Println("contract index:", idx)
	return nil
}

// runRecover searches the wallet's derivation trees for the keypair behind
// a contract public key. Pre-upgrade contracts never recorded their
// derivation path, so the only way back to the signing key is the bounded
// index scan in crypto.FindContractKeypair.
func runRecover(args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	pubHex := fs.String("pubkey", "", "contract public key to recover, compressed hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pubHex == "" {
		return fmt.Errorf("--pubkey is required")
	}
	expected, err := hex.DecodeString(*pubHex)
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}

	fmt.Fprintln(os.Stderr, "enter the wallet mnemonic:")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read mnemonic: %w", err)
	}
	mnemonic := strings.TrimSpace(line)
	if !crypto.ValidMnemonic(mnemonic) {
		return fmt.Errorf("not a well-formed mnemonic")
	}
	seed, err := crypto.MnemonicSeed(mnemonic, "")
	if err != nil {
		return fmt.Errorf("derive seed: %w", err)
	}
	tree, err := crypto.NewKeyTreeFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive key tree: %w", err)
	}

	_, path, ok := tree.FindContractKeypair(expected)
	if !ok {
		return fmt.Errorf("no matching keypair within the search bounds")
	}
	fmt.Println("derivation path:", path)
	return nil
}

// runFallback generates the offline emergency-recovery keypair used by the
// legacy 2-of-4 descriptors and stores it in a scrypt-encrypted keystore
// file, printing the public key to register with the hub.
func runFallback(args []string) error {
	fs := flag.NewFlagSet("fallback", flag.ExitOnError)
	out := fs.String("out", "fallback-key.json", "keystore output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := passphrase.NewSource("WALLETCLI_KEYSTORE_PASSWORD").Get()
	if err != nil {
		return fmt.Errorf("read keystore passphrase: %w", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate fallback key: %w", err)
	}
	if err := crypto.SaveToKeystore(*out, key, password); err != nil {
		return fmt.Errorf("save keystore: %w", err)
	}
	fmt.Println("fallback keystore written to", *out)
	fmt.Println("fallback pubkey:", hex.EncodeToString(key.PubKey().SECCompressed()))
	return nil
}

// runIdentity derives the wallet's out-of-band signing identity at the
// fixed m/44/0/0/0/0 path, used to sign messages to the hub or a
// counterparty outside the loan protocol itself.
func runIdentity(args []string) error {
	fs := flag.NewFlagSet("identity", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "enter the wallet mnemonic:")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read mnemonic: %w", err)
	}
	mnemonic := strings.TrimSpace(line)
	if !crypto.ValidMnemonic(mnemonic) {
		return fmt.Errorf("not a well-formed mnemonic")
	}
	seed, err := crypto.MnemonicSeed(mnemonic, "")
	if err != nil {
		return fmt.Errorf("derive seed: %w", err)
	}
	tree, err := crypto.NewKeyTreeFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive key tree: %w", err)
	}
	leaf, err := tree.NostrIdentityKey()
	if err != nil {
		return fmt.Errorf("derive identity key: %w", err)
	}
	pub, err := crypto.LeafPublicKey(leaf)
	if err != nil {
		return fmt.Errorf("identity public key: %w", err)
	}
	fmt.Println("identity pubkey:", hex.EncodeToString(pub.SECCompressed()))
	return nil
}

func derivePubKeys(net crypto.Network, idx uint32, legacy bool, self, counterparty, hub *crypto.KeyTree, fallbackXpub string) ([][]byte, int, error) {
	if !legacy {
		selfLeaf, err := self.ContractKey(net, idx)
		if err != nil {
			return nil, 0, err
		}
		counterpartyLeaf, err := counterparty.ContractKey(net, idx)
		if err != nil {
			return nil, 0, err
		}
		hubLeaf, err := hub.ContractKey(net, idx)
		if err != nil {
			return nil, 0, err
		}
		selfPub, err := crypto.LeafPublicKey(selfLeaf)
		if err != nil {
			return nil, 0, err
		}
		counterpartyPub, err := crypto.LeafPublicKey(counterpartyLeaf)
		if err != nil {
			return nil, 0, err
		}
		hubPub, err := crypto.LeafPublicKey(hubLeaf)
		if err != nil {
			return nil, 0, err
		}
		return [][]byte{selfPub.SECCompressed(), counterpartyPub.SECCompressed(), hubPub.SECCompressed()}, 2, nil
	}

	if fallbackXpub == "" {
		return nil, 0, fmt.Errorf("--fallback-xpub is required for --legacy")
	}
	fallbackTree, err := crypto.NewKeyTreeFromXpub(fallbackXpub)
	if err != nil {
		return nil, 0, fmt.Errorf("parse fallback xpub: %w", err)
	}
	selfLeaf, err := self.LegacyContractKey(net, idx)
	if err != nil {
		return nil, 0, err
	}
	counterpartyLeaf, err := counterparty.LegacyContractKey(net, idx)
	if err != nil {
		return nil, 0, err
	}
	hubLeaf, err := hub.LegacyContractKey(net, idx)
	if err != nil {
		return nil, 0, err
	}
	fallbackLeaf, err := fallbackTree.LegacyContractKey(net, idx)
	if err != nil {
		return nil, 0, err
	}
	selfPub, err := crypto.LeafPublicKey(selfLeaf)
	if err != nil {
		return nil, 0, err
	}
	counterpartyPub, err := crypto.LeafPublicKey(counterpartyLeaf)
	if err != nil {
		return nil, 0, err
	}
	hubPub, err := crypto.LeafPublicKey(hubLeaf)
	if err != nil {
		return nil, 0, err
	}
	fallbackPub, err := crypto.LeafPublicKey(fallbackLeaf)
	if err != nil {
		return nil, 0, err
	}
	return [][]byte{selfPub.SECCompressed(), hubPub.SECCompressed(), fallbackPub.SECCompressed(), counterpartyPub.SECCompressed()}, 2, nil
}
