package client

import (
	"errors"

	"github.com/caritasnetwork/Caritas/wallet"
)

var ErrWalletNotReady = errors.New("wallet not ready, read or create the wallet first")

// WalletReadSaver allows to read and save the wallet.
type WalletReadSaver interface {
	ReadWallet() (wallet.Wallet, error)
	SaveWallet(w wallet.Wallet) error
}

// NewSignValidatorCreator is a function that creates a new signing wallet.
type NewSignValidatorCreator func() (wallet.Wallet, error)

// WalletKeeper holds the signing wallet in memory and guards every signing
// operation behind an explicit ready flag. It is the single signer of the
// application, signing fails until a wallet is read or created.
type WalletKeeper struct {
	wrs           WalletReadSaver
	walletCreator NewSignValidatorCreator
	w             wallet.Wallet
	ready         bool
}

// NewWalletKeeper creates a new WalletKeeper with no wallet loaded.
func NewWalletKeeper(wrs WalletReadSaver, walletCreator NewSignValidatorCreator) *WalletKeeper {
	return &WalletKeeper{wrs: wrs, walletCreator: walletCreator}
}

// NewWallet creates a new wallet and keeps it in memory ready for signing.
func (k *WalletKeeper) NewWallet() error {
	w, err := k.walletCreator()
	if err != nil {
		return err
	}
	k.w = w
	k.ready = true
	return nil
}

// ReadWalletFromFile reads the wallet from the file in the path.
func (k *WalletKeeper) ReadWalletFromFile() error {
	w, err := k.wrs.ReadWallet()
	if err != nil {
		return err
	}
	k.w = w
	k.ready = true
	return nil
}

// SaveWalletToFile saves the wallet to the file in the path.
func (k *WalletKeeper) SaveWalletToFile() error {
	if !k.ready {
		return ErrWalletNotReady
	}
	return k.wrs.SaveWallet(k.w)
}

// Address reads the wallet address.
// Address is a string representation of wallet public key.
func (k *WalletKeeper) Address() string {
	if !k.ready {
		return ""
	}
	return k.w.Address()
}

// Sign signs the message with the wallet private key.
func (k *WalletKeeper) Sign(message []byte) (digest [32]byte, signature []byte, err error) {
	if !k.ready {
		return digest, signature, ErrWalletNotReady
	}
	digest, signature = k.w.Sign(message)
	return digest, signature, nil
}

// Ready checks if a wallet is loaded.
func (k *WalletKeeper) Ready() bool {
	return k.ready
}

// FlushWalletFromMemory flushes the wallet from the memory.
// Do not use this wallet to sign after this method is called.
func (k *WalletKeeper) FlushWalletFromMemory() {
	k.w = wallet.Wallet{}
	k.ready = false
}
