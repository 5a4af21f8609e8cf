/*Package fel implements a host-side driver for the Allwinner FEL/FES USB
recovery protocol used by Allwinner ARM SoCs in their ROM-level boot mode.

A Session owns one USB device matching vendor 0x1f3a / product 0xefe8,
claims interface 0, and locates the first bulk IN and bulk OUT endpoints.
Every logical command (device_info, read, write, run, verify_status,
set_storage_state, transmite, write_mbr) is built from a three-leg bulk
transaction: a fixed 32-byte request header, a payload leg, and a 13-byte
closing status envelope. See Transport for the framing and Session for the
command primitives.

The package is single-threaded and synchronous: every command primitive
blocks until it completes, times out, or fails. No command pipelines with
another on the wire.
*/
package fel
